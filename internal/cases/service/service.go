package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"casedesk/internal/cases/archive"
	"casedesk/internal/cases/metrics"
	"casedesk/internal/cases/models"
	"casedesk/internal/cases/search"
	dErrors "casedesk/pkg/domain-errors"
	"casedesk/pkg/platform/audit"
	"casedesk/pkg/platform/sentinel"
	"casedesk/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

const tracerName = "casedesk/cases"

type CaseStore interface {
	Create(ctx context.Context, t models.CaseType, draft *models.Case, year int) (*models.Case, error)
	FindByNumber(ctx context.Context, number string, t models.CaseType) (*models.Case, error)
	Update(ctx context.Context, number string, hint models.CaseType, patch *models.UpdateCaseRequest, now time.Time) (*models.Case, error)
	Search(ctx context.Context, t models.CaseType, q models.Query) ([]*models.Case, error)
}

type Archiver interface {
	Delete(ctx context.Context, number string, t models.CaseType, actor string, now time.Time) (*models.ArchivedCase, error)
	Get(ctx context.Context, number string) (*models.ArchivedCase, error)
	List(ctx context.Context) ([]*models.ArchivedCase, error)
	Restore(ctx context.Context, number string, now time.Time) (*archive.RestoreResult, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type HistoryReader interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

// Service orchestrates the case lifecycle: numbering on create, search,
// partial updates, archive and restore. Every successful mutation emits
// exactly one audit event.
type Service struct {
	cases    CaseStore
	archive  Archiver
	searcher *search.Searcher
	history  HistoryReader

	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	location       *time.Location
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithHistory enables ListHistory over recorded audit events.
func WithHistory(history HistoryReader) Option {
	return func(s *Service) {
		s.history = history
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithReportLocation sets the zone used to derive the numbering year and to
// resolve report windows.
func WithReportLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// New constructs a Service.
func New(cases CaseStore, archiver Archiver, opts ...Option) *Service {
	s := &Service{
		cases:    cases,
		archive:  archiver,
		searcher: search.New(cases),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCase assigns the next number of the current year and stores the case.
// The caller becomes the reporter unless the request names one.
func (s *Service) CreateCase(ctx context.Context, req *models.CreateCaseRequest) (_ *models.Case, err error) {
	ctx, done := s.trace(ctx, "create")
	defer done(&err)

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	draft, err := req.ToCase(reporterFrom(actor), now)
	if err != nil {
		return nil, err
	}

	created, err := s.cases.Create(ctx, draft.TypeCase, draft, now.In(s.location).Year())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncAllocationConflict(string(draft.TypeCase))
		}
		return nil, domainError(err, "failed to create case")
	}

	s.metrics.IncCreated(string(created.TypeCase))
	s.recordMutation(ctx, actor, audit.ActionCaseCreated, created.CaseNumber, created.TypeCase,
		fmt.Sprintf("created %s case %s", created.TypeCase, created.CaseNumber))
	return created, nil
}

// GetCase loads a live case. typeHint may be empty, in which case Preventive
// is probed before Corrective.
func (s *Service) GetCase(ctx context.Context, number, typeHint string) (_ *models.Case, err error) {
	ctx, done := s.trace(ctx, "get")
	defer done(&err)

	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	t, err := optionalType(typeHint)
	if err != nil {
		return nil, err
	}
	c, err := s.cases.FindByNumber(ctx, number, t)
	if err != nil {
		return nil, domainError(err, "failed to load case")
	}
	return c, nil
}

// SearchCases compiles criteria and runs it over one or both collections.
func (s *Service) SearchCases(ctx context.Context, criteria models.SearchCriteria) (_ []*models.Case, err error) {
	ctx, done := s.trace(ctx, "search")
	defer done(&err)

	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	cases, err := s.searcher.Search(ctx, criteria)
	if err != nil {
		return nil, domainError(err, "failed to search cases")
	}
	return cases, nil
}

// UpdateCase applies a partial update. typeHint may be empty; without it a
// patch naming typeCase selects that collection first, otherwise Preventive is
// probed before Corrective. A patch naming a different typeCase than the
// record's is rejected and leaves the record unchanged.
func (s *Service) UpdateCase(ctx context.Context, number, typeHint string, req *models.UpdateCaseRequest) (_ *models.Case, err error) {
	ctx, done := s.trace(ctx, "update")
	defer done(&err)

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	t, err := optionalType(typeHint)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.cases.Update(ctx, number, t, req, requestcontext.Now(ctx))
	if err != nil {
		return nil, domainError(err, "failed to update case")
	}

	s.recordMutation(ctx, actor, audit.ActionCaseUpdated, updated.CaseNumber, updated.TypeCase,
		fmt.Sprintf("updated %s case %s", updated.TypeCase, updated.CaseNumber))
	return updated, nil
}

// DeleteCase moves a live case of the given type to the archive.
func (s *Service) DeleteCase(ctx context.Context, number, caseType string) (_ *models.ArchivedCase, err error) {
	ctx, done := s.trace(ctx, "delete")
	defer done(&err)

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	t, err := models.ParseCaseType(caseType)
	if err != nil {
		return nil, err
	}

	entry, err := s.archive.Delete(ctx, number, t, actor.Username, requestcontext.Now(ctx))
	if err != nil {
		return nil, domainError(err, "failed to delete case")
	}

	s.metrics.IncArchived(string(t))
	s.recordMutation(ctx, actor, audit.ActionCaseArchived, number, t,
		fmt.Sprintf("deleted %s case %s", t, number))
	return entry, nil
}

// ListArchived returns the most recent archive entry for number, or every
// entry when number is empty.
func (s *Service) ListArchived(ctx context.Context, number string) (_ []*models.ArchivedCase, err error) {
	ctx, done := s.trace(ctx, "list_archived")
	defer done(&err)

	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	if number != "" {
		entry, err := s.archive.Get(ctx, number)
		if err != nil {
			return nil, domainError(err, "failed to load archived case")
		}
		return []*models.ArchivedCase{entry}, nil
	}
	entries, err := s.archive.List(ctx)
	if err != nil {
		return nil, domainError(err, "failed to list archived cases")
	}
	return entries, nil
}

// RestoreCase moves an archived case back to its original collection,
// renumbering it when its number has been reused.
func (s *Service) RestoreCase(ctx context.Context, number string) (_ *models.Case, err error) {
	ctx, done := s.trace(ctx, "restore")
	defer done(&err)

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.archive.Restore(ctx, number, requestcontext.Now(ctx))
	if err != nil {
		return nil, domainError(err, "failed to restore case")
	}

	msg := fmt.Sprintf("restored %s case %s", res.Case.TypeCase, res.Case.CaseNumber)
	if res.Renumbered {
		msg = fmt.Sprintf("restored %s case %s as %s", res.Case.TypeCase, res.OriginalNumber, res.Case.CaseNumber)
	}
	s.metrics.IncRestored(string(res.Case.TypeCase), res.Renumbered)
	s.recordMutation(ctx, actor, audit.ActionCaseRestored, res.Case.CaseNumber, res.Case.TypeCase, msg)
	return res.Case, nil
}

// ListForReport returns the cases of one type reported within the window.
func (s *Service) ListForReport(ctx context.Context, caseType string, window search.WindowRequest) (_ []*models.Case, err error) {
	ctx, done := s.trace(ctx, "report")
	defer done(&err)

	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	t, err := models.ParseCaseType(caseType)
	if err != nil {
		return nil, err
	}
	r, err := search.Window(window, requestcontext.Now(ctx), s.location)
	if err != nil {
		return nil, err
	}
	cases, err := s.searcher.Execute(ctx, models.Query{Type: t, From: &r.From, To: &r.To})
	if err != nil {
		return nil, domainError(err, "failed to list cases for report")
	}
	return cases, nil
}

// ListHistory returns recorded audit events, optionally narrowed to one
// actor and a date range with the same rules as case search.
func (s *Service) ListHistory(ctx context.Context, username, startDate, endDate string) (_ []audit.Event, err error) {
	ctx, done := s.trace(ctx, "history")
	defer done(&err)

	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "history is not configured")
	}
	from, to, err := search.DateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	events, err := s.history.List(ctx, audit.Filter{Actor: username, From: from, To: to})
	if err != nil {
		return nil, domainError(err, "failed to list history")
	}
	return events, nil
}

// recordMutation logs a completed mutation and emits its audit event. The
// mutation has already happened, so an emit failure is logged, not returned.
func (s *Service) recordMutation(ctx context.Context, actor requestcontext.Principal, action audit.Action, number string, t models.CaseType, message string) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action),
			"case_number", number,
			"case_type", t,
			"actor", actor.Username,
			"request_id", requestID,
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		Actor:      actor.Username,
		Action:     action,
		Message:    message,
		CaseNumber: number,
		CaseType:   string(t),
		RequestID:  requestID,
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", action,
			"case_number", number,
			"actor", actor.Username,
			"request_id", requestID,
			"error", err,
		)
	}
}

// trace starts a span for op and returns a func that ends it and records the
// operation's duration. Call as defer done(&err).
func (s *Service) trace(ctx context.Context, op string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "cases."+op,
		trace.WithAttributes(attribute.String("request_id", requestcontext.RequestID(ctx))))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(*errp)))
		}
		span.End()
		s.metrics.ObserveOperation(op, start)
	}
}

func requireActor(ctx context.Context) (requestcontext.Principal, error) {
	actor, ok := requestcontext.Actor(ctx)
	if !ok {
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "authenticated actor required")
	}
	return actor, nil
}

func reporterFrom(p requestcontext.Principal) models.UserRef {
	name := p.Name
	if name == "" {
		name = p.Username
	}
	return models.UserRef{
		ID:         p.Username,
		Name:       name,
		Position:   p.Position,
		Department: p.Department,
	}
}

func optionalType(raw string) (models.CaseType, error) {
	if raw == "" {
		return "", nil
	}
	return models.ParseCaseType(raw)
}

// domainError passes coded errors through and classifies bare store errors.
func domainError(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "case not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "case number already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
