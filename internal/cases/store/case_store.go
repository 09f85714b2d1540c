package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"casedesk/internal/cases/models"
	"casedesk/internal/cases/numbering"
	dErrors "casedesk/pkg/domain-errors"
	"casedesk/pkg/platform/sentinel"
)

// CaseStore routes case operations to the collection of the case's type and
// assigns case numbers on creation.
type CaseStore struct {
	collections map[models.CaseType]Collection
	allocator   *numbering.Allocator
	locker      numbering.Locker
	logger      *slog.Logger
}

// Option configures a CaseStore.
type Option func(*CaseStore)

// WithAllocationLock serialises allocate+insert per (type, year) through locker.
func WithAllocationLock(locker numbering.Locker) Option {
	return func(s *CaseStore) {
		s.locker = locker
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *CaseStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a CaseStore over one collection per type.
func New(preventive, corrective Collection, cfg numbering.Config, opts ...Option) *CaseStore {
	s := &CaseStore{
		collections: map[models.CaseType]Collection{
			models.CaseTypePreventive: preventive,
			models.CaseTypeCorrective: corrective,
		},
		logger: slog.Default(),
	}
	s.allocator = numbering.New(s, cfg)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemory builds a CaseStore over in-memory collections.
func NewInMemory(cfg numbering.Config, opts ...Option) *CaseStore {
	return New(NewInMemoryCollection(), NewInMemoryCollection(), cfg, opts...)
}

// NewPostgres builds a CaseStore over the preventive_cases and corrective_cases tables.
func NewPostgres(pool *pgxpool.Pool, cfg numbering.Config, opts ...Option) *CaseStore {
	return New(
		NewPostgresCollection(pool, models.CaseTypePreventive),
		NewPostgresCollection(pool, models.CaseTypeCorrective),
		cfg, opts...,
	)
}

func (s *CaseStore) collection(t models.CaseType) (Collection, error) {
	c, ok := s.collections[t]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "typeCase must be Preventive or Corrective")
	}
	return c, nil
}

// translate maps collection errors onto domain codes, keeping sentinels reachable.
func translate(err error, number, op string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("case %s not found", number))
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, fmt.Sprintf("case number %s already exists", number))
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+op)
	}
}

// MaxNumberForYear implements numbering.Store.
func (s *CaseStore) MaxNumberForYear(ctx context.Context, t models.CaseType, year int) (string, error) {
	col, err := s.collection(t)
	if err != nil {
		return "", err
	}
	return col.MaxNumberForYear(ctx, year)
}

// Exists reports whether number is live in the collection of t.
func (s *CaseStore) Exists(ctx context.Context, t models.CaseType, number string) (bool, error) {
	col, err := s.collection(t)
	if err != nil {
		return false, err
	}
	ok, err := col.Exists(ctx, number)
	if err != nil {
		return false, translate(err, number, "check case")
	}
	return ok, nil
}

// NextNumber previews the number the next Create of t would receive in year.
func (s *CaseStore) NextNumber(ctx context.Context, t models.CaseType, year int) (string, error) {
	return s.allocator.Allocate(ctx, t, year)
}

// Create validates draft, assigns the next number of year to it and inserts it.
// The draft is not modified; the stored record is returned.
func (s *CaseStore) Create(ctx context.Context, t models.CaseType, draft *models.Case, year int) (*models.Case, error) {
	c := draft.Clone()
	c.TypeCase = t
	if c.Status == "" {
		c.Status = models.StatusOpen
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	col, err := s.collection(t)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, t, year)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "failed to release allocation lock",
					"case_type", t,
					"year", year,
					"error", err,
				)
			}
		}()
	}

	number, err := s.allocator.Allocate(ctx, t, year)
	if err != nil {
		return nil, err
	}
	c.CaseNumber = number
	if err := col.Insert(ctx, c); err != nil {
		return nil, translate(err, number, "insert case")
	}
	return c, nil
}

// FindByNumber looks number up in the collection of t. With an empty t the
// Preventive collection is probed first, then Corrective.
func (s *CaseStore) FindByNumber(ctx context.Context, number string, t models.CaseType) (*models.Case, error) {
	types := models.CaseTypes()
	if t != "" {
		types = []models.CaseType{t}
	}
	return s.findIn(ctx, number, types)
}

func (s *CaseStore) findIn(ctx context.Context, number string, types []models.CaseType) (*models.Case, error) {
	for _, ct := range types {
		col, err := s.collection(ct)
		if err != nil {
			return nil, err
		}
		c, err := col.FindByNumber(ctx, number)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, translate(err, number, "load case")
		}
	}
	return nil, translate(sentinel.ErrNotFound, number, "load case")
}

// updateOrder is the collection probe order for Update. Both types number
// from YYYY0001, so the same number usually lives in both collections: an
// explicit hint is the only collection searched, and a patch naming its type
// probes that collection before the others.
func updateOrder(hint models.CaseType, patch *models.UpdateCaseRequest) []models.CaseType {
	if hint != "" {
		return []models.CaseType{hint}
	}
	all := models.CaseTypes()
	if patch == nil || patch.TypeCase == nil {
		return all
	}
	first, err := models.ParseCaseType(*patch.TypeCase)
	if err != nil {
		return all
	}
	order := []models.CaseType{first}
	for _, t := range all {
		if t != first {
			order = append(order, t)
		}
	}
	return order
}

// Update merges patch into the stored case. hint, when set, pins the
// collection. A patch naming a type other than the record's is rejected and
// the record is left unchanged.
func (s *CaseStore) Update(ctx context.Context, number string, hint models.CaseType, patch *models.UpdateCaseRequest, now time.Time) (*models.Case, error) {
	c, err := s.findIn(ctx, number, updateOrder(hint, patch))
	if err != nil {
		return nil, err
	}
	if err := patch.ApplyTo(c, now); err != nil {
		return nil, err
	}
	col, err := s.collection(c.TypeCase)
	if err != nil {
		return nil, err
	}
	if err := col.Update(ctx, c); err != nil {
		return nil, translate(err, number, "update case")
	}
	return c, nil
}

// InsertExisting stores an already-numbered case, used when restoring from
// the archive. Returns a Conflict wrapping sentinel.ErrAlreadyUsed when taken.
func (s *CaseStore) InsertExisting(ctx context.Context, c *models.Case) error {
	col, err := s.collection(c.TypeCase)
	if err != nil {
		return err
	}
	if err := col.Insert(ctx, c); err != nil {
		return translate(err, c.CaseNumber, "insert case")
	}
	return nil
}

// Remove hard-deletes a live case. Callers go through the archive manager.
func (s *CaseStore) Remove(ctx context.Context, t models.CaseType, number string) error {
	col, err := s.collection(t)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, number); err != nil {
		return translate(err, number, "delete case")
	}
	return nil
}

// Search runs q against the collection of t.
func (s *CaseStore) Search(ctx context.Context, t models.CaseType, q models.Query) ([]*models.Case, error) {
	col, err := s.collection(t)
	if err != nil {
		return nil, err
	}
	cases, err := col.Search(ctx, q.ForType(t))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search cases")
	}
	return cases, nil
}

// ListAll returns every live case of t, most recent first.
func (s *CaseStore) ListAll(ctx context.Context, t models.CaseType) ([]*models.Case, error) {
	col, err := s.collection(t)
	if err != nil {
		return nil, err
	}
	cases, err := col.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cases")
	}
	return cases, nil
}
