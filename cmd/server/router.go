package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"casedesk/internal/cases/handler"
	"casedesk/internal/platform/metrics"
	"casedesk/pkg/platform/httputil"
	"casedesk/pkg/platform/middleware/auth"
	request "casedesk/pkg/platform/middleware/request"
)

type routerDeps struct {
	service        handler.Service
	resolver       auth.PrincipalResolver
	health         func(context.Context) error
	logger         *slog.Logger
	registerer     prometheus.Registerer
	gatherer       prometheus.Gatherer
	requestTimeout time.Duration
}

func newRouter(deps routerDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Time)
	r.Use(request.ClientIP)
	r.Use(request.Recovery(deps.logger))
	r.Use(request.Logger(deps.logger))
	r.Use(metrics.New(deps.registerer).Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if deps.health != nil {
			if err := deps.health(req.Context()); err != nil {
				deps.logger.WarnContext(req.Context(), "health check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(deps.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if deps.requestTimeout > 0 {
			r.Use(chimw.Timeout(deps.requestTimeout))
		}
		r.Use(auth.RequireAuth(deps.resolver, deps.logger))
		handler.New(deps.service, deps.logger.With("component", "http")).Register(r)
	})
	return r
}
