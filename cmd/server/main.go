package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"casedesk/internal/app"
	"casedesk/internal/platform/config"
	"casedesk/internal/platform/httpserver"
	"casedesk/internal/platform/logger"
	"casedesk/internal/principal"
)

// main wires configuration, backends and the HTTP router. Business logic
// lives in internal/cases.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		log.Error("failed to open backends", "error", err)
		os.Exit(1)
	}
	defer backends.Close()

	resolver := principal.NewProvider(principal.NewJWTValidator(cfg.JWTSigningKey), backends.Sessions,
		principal.WithLogger(log.With("component", "principal")))

	router := newRouter(routerDeps{
		service:        backends.Service(),
		resolver:       resolver,
		health:         backends.Health,
		logger:         log,
		registerer:     prometheus.DefaultRegisterer,
		gatherer:       prometheus.DefaultGatherer,
		requestTimeout: cfg.RequestTimeout,
	})

	srv := httpserver.New(cfg.Addr, router)
	if err := httpserver.Run(ctx, srv, 10*time.Second, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
