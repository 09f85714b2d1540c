package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"casedesk/internal/cases/models"
	"casedesk/internal/cases/search"
	dErrors "casedesk/pkg/domain-errors"
	"casedesk/pkg/platform/audit"
	"casedesk/pkg/platform/httputil"
	"casedesk/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the case lifecycle operations exposed over HTTP.
type Service interface {
	CreateCase(ctx context.Context, req *models.CreateCaseRequest) (*models.Case, error)
	GetCase(ctx context.Context, number, typeHint string) (*models.Case, error)
	SearchCases(ctx context.Context, criteria models.SearchCriteria) ([]*models.Case, error)
	UpdateCase(ctx context.Context, number, typeHint string, req *models.UpdateCaseRequest) (*models.Case, error)
	DeleteCase(ctx context.Context, number, caseType string) (*models.ArchivedCase, error)
	ListArchived(ctx context.Context, number string) ([]*models.ArchivedCase, error)
	RestoreCase(ctx context.Context, number string) (*models.Case, error)
	ListForReport(ctx context.Context, caseType string, window search.WindowRequest) ([]*models.Case, error)
	ListHistory(ctx context.Context, username, startDate, endDate string) ([]audit.Event, error)
}

// Handler wires the case and history endpoints to the lifecycle service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the case endpoints on r. Authentication is applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Route("/cases", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleSearch)
		r.Get("/report", h.HandleReport)
		r.Get("/archived", h.HandleListArchived)
		r.Post("/archived/{number}/restore", h.HandleRestore)
		r.Get("/{number}", h.HandleGet)
		r.Patch("/{number}", h.HandleUpdate)
		r.Delete("/{number}", h.HandleDelete)
	})
	r.Get("/history", h.HandleHistory)
}

// HandleCreate handles POST /cases.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateCaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.CreateCase(ctx, req)
	if err != nil {
		h.fail(ctx, w, "failed to create case", err, "case_type", req.TypeCase)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

// HandleGet handles GET /cases/{number}?type=.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := chi.URLParam(r, "number")

	c, err := h.service.GetCase(ctx, number, r.URL.Query().Get("type"))
	if err != nil {
		h.fail(ctx, w, "failed to get case", err, "case_number", number)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleSearch handles GET /cases with criteria as query parameters.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cases, err := h.service.SearchCases(ctx, criteriaFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(ctx, w, "failed to search cases", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newCaseList(cases))
}

// HandleUpdate handles PATCH /cases/{number}?type=. The type is optional.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	number := chi.URLParam(r, "number")

	req, ok := httputil.DecodeAndPrepare[models.UpdateCaseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.UpdateCase(ctx, number, r.URL.Query().Get("type"), req)
	if err != nil {
		h.fail(ctx, w, "failed to update case", err, "case_number", number)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleDelete handles DELETE /cases/{number}?type=.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := chi.URLParam(r, "number")

	if _, err := h.service.DeleteCase(ctx, number, r.URL.Query().Get("type")); err != nil {
		h.fail(ctx, w, "failed to delete case", err, "case_number", number)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListArchived handles GET /cases/archived?number=.
func (h *Handler) HandleListArchived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := strings.TrimSpace(r.URL.Query().Get("number"))

	entries, err := h.service.ListArchived(ctx, number)
	if err != nil {
		h.fail(ctx, w, "failed to list archived cases", err, "case_number", number)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newArchivedList(entries))
}

// HandleRestore handles POST /cases/archived/{number}/restore.
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number := chi.URLParam(r, "number")

	c, err := h.service.RestoreCase(ctx, number)
	if err != nil {
		h.fail(ctx, w, "failed to restore case", err, "case_number", number)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleReport handles GET /cases/report.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	window, err := windowFromQuery(q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cases, err := h.service.ListForReport(ctx, q.Get("type"), window)
	if err != nil {
		h.fail(ctx, w, "failed to list cases for report", err, "interval", window.Interval)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newCaseList(cases))
}

// HandleHistory handles GET /history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	events, err := h.service.ListHistory(ctx,
		strings.TrimSpace(q.Get("username")), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		h.fail(ctx, w, "failed to list history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newHistoryList(events))
}

// fail logs at warn for client errors and error otherwise, then writes the envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func criteriaFromQuery(q url.Values) models.SearchCriteria {
	return models.SearchCriteria{
		CaseNumber:       q.Get("caseNumber"),
		ServiceType:      q.Get("serviceType"),
		Dependency:       q.Get("dependency"),
		Status:           q.Get("status"),
		TypeCase:         q.Get("typeCase"),
		CaseType:         q.Get("caseType"),
		Priority:         q.Get("priority"),
		ReportedByName:   q.Get("reportedByName"),
		TechnicianName:   q.Get("technicianName"),
		EquipmentName:    q.Get("equipmentName"),
		ReportedByID:     q.Get("reportedById"),
		TechnicianID:     q.Get("technicianId"),
		MinEffectiveness: q.Get("minEffectiveness"),
		MinSatisfaction:  q.Get("minSatisfaction"),
		StartDate:        q.Get("startDate"),
		EndDate:          q.Get("endDate"),
		SortBy:           q.Get("sortBy"),
	}
}

func windowFromQuery(q url.Values) (search.WindowRequest, error) {
	req := search.WindowRequest{
		Interval:  search.Interval(strings.ToLower(strings.TrimSpace(q.Get("interval")))),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}
	var err error
	if req.Year, err = intParam(q, "year"); err != nil {
		return search.WindowRequest{}, err
	}
	if req.Period, err = intParam(q, "period"); err != nil {
		return search.WindowRequest{}, err
	}
	return req, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be an integer")
	}
	return n, nil
}
