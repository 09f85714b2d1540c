// Package archive moves cases between the live collections and the archive.
//
// A case is in at most one of {live, archive}. Delete writes the archive entry
// before removing the live record; Restore reinserts before removing the
// archive entry. A failed second step is compensated by undoing the first.
// When the compensation fails too, the error names what is left behind so an
// operator can reconcile.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"casedesk/internal/cases/metrics"
	"casedesk/internal/cases/models"
	"casedesk/internal/cases/numbering"
	dErrors "casedesk/pkg/domain-errors"
	"casedesk/pkg/platform/sentinel"
)

const (
	DefaultRetention        = 30 * 24 * time.Hour
	DefaultMaxRestoreSuffix = 100
)

// LiveStore is the subset of the case store the archive manager drives.
// Errors carry domain codes and keep sentinel errors reachable.
type LiveStore interface {
	FindByNumber(ctx context.Context, number string, t models.CaseType) (*models.Case, error)
	Exists(ctx context.Context, t models.CaseType, number string) (bool, error)
	InsertExisting(ctx context.Context, c *models.Case) error
	Remove(ctx context.Context, t models.CaseType, number string) error
}

// Manager runs archive and restore sagas.
type Manager struct {
	live      LiveStore
	archive   Store
	retention time.Duration
	maxSuffix int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(met *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = met
	}
}

// WithRetention sets how long archive entries are kept before the retention
// sweep may purge them.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// WithMaxRestoreSuffix bounds the (n) suffixes tried on a restore collision
// before falling back to a timestamp disambiguator.
func WithMaxRestoreSuffix(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSuffix = n
		}
	}
}

func New(live LiveStore, archive Store, opts ...Option) *Manager {
	m := &Manager{
		live:      live,
		archive:   archive,
		retention: DefaultRetention,
		maxSuffix: DefaultMaxRestoreSuffix,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Delete archives the live case number of type t on behalf of actor.
func (m *Manager) Delete(ctx context.Context, number string, t models.CaseType, actor string, now time.Time) (*models.ArchivedCase, error) {
	if !t.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "typeCase must be Preventive or Corrective")
	}
	c, err := m.live.FindByNumber(ctx, number, t)
	if err != nil {
		return nil, err
	}

	entry := models.NewArchivedCase(c, actor, now, m.retention)
	if err := m.archive.Insert(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive case")
	}

	if err := m.live.Remove(ctx, t, number); err != nil {
		if cerr := m.archive.Delete(context.WithoutCancel(ctx), entry.ID); cerr != nil {
			m.metrics.IncCompensation("delete", false)
			m.logger.ErrorContext(ctx, "archive compensation failed; orphaned archive entry",
				"archive_id", entry.ID.String(),
				"case_number", number,
				"case_type", t,
				"error", err,
				"compensation_error", cerr,
			)
			return nil, dErrors.Wrap(errors.Join(err, cerr), dErrors.CodeInternal,
				fmt.Sprintf("failed to delete case %s; orphaned archive entry %s", number, entry.ID))
		}
		m.metrics.IncCompensation("delete", true)
		m.logger.WarnContext(ctx, "live delete failed; archive entry rolled back",
			"archive_id", entry.ID.String(),
			"case_number", number,
			"case_type", t,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to delete case %s", number))
	}
	return entry, nil
}

// Get returns the most recent archive entry for number.
func (m *Manager) Get(ctx context.Context, number string) (*models.ArchivedCase, error) {
	entry, err := m.archive.FindLatestByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("archived case %s not found", number))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load archived case")
	}
	return entry, nil
}

// List returns every archive entry, most recently deleted first.
func (m *Manager) List(ctx context.Context) ([]*models.ArchivedCase, error) {
	entries, err := m.archive.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list archived cases")
	}
	return entries, nil
}

// RestoreResult describes a completed restore.
type RestoreResult struct {
	Case           *models.Case
	OriginalNumber string
	Renumbered     bool
}

// Restore moves the most recent archive entry for number back into its
// original collection. If the number has been reused meanwhile, the case is
// reinserted as <number>(1), <number>(2), ... up to the configured bound, then
// as <number>(r<unix-millis>).
func (m *Manager) Restore(ctx context.Context, number string, now time.Time) (*RestoreResult, error) {
	entry, err := m.Get(ctx, number)
	if err != nil {
		return nil, err
	}

	restored, err := m.reinsert(ctx, entry, now)
	if err != nil {
		return nil, err
	}

	if err := m.archive.Delete(ctx, entry.ID); err != nil {
		cctx := context.WithoutCancel(ctx)
		if cerr := m.live.Remove(cctx, restored.TypeCase, restored.CaseNumber); cerr != nil {
			m.metrics.IncCompensation("restore", false)
			m.logger.ErrorContext(ctx, "restore compensation failed; case present in archive and live store",
				"archive_id", entry.ID.String(),
				"case_number", restored.CaseNumber,
				"case_type", restored.TypeCase,
				"error", err,
				"compensation_error", cerr,
			)
			return nil, dErrors.Wrap(errors.Join(err, cerr), dErrors.CodeInternal,
				fmt.Sprintf("failed to restore case %s; live copy %s duplicates archive entry %s",
					number, restored.CaseNumber, entry.ID))
		}
		m.metrics.IncCompensation("restore", true)
		m.logger.WarnContext(ctx, "archive delete failed; reinserted case rolled back",
			"archive_id", entry.ID.String(),
			"case_number", restored.CaseNumber,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to restore case %s", number))
	}

	return &RestoreResult{
		Case:           restored,
		OriginalNumber: entry.OriginalCase.CaseNumber,
		Renumbered:     restored.CaseNumber != entry.OriginalCase.CaseNumber,
	}, nil
}

// reinsert places the snapshot under the first free identifier. An insert
// that loses a race for a candidate moves on to the next one.
func (m *Manager) reinsert(ctx context.Context, entry *models.ArchivedCase, now time.Time) (*models.Case, error) {
	t := entry.OriginalCollection
	base := entry.OriginalCase.CaseNumber

	for attempt := 0; attempt <= m.maxSuffix+1; attempt++ {
		candidate := base
		switch {
		case attempt > m.maxSuffix:
			candidate = numbering.WithTimestampSuffix(base, now)
		case attempt > 0:
			candidate = numbering.WithSuffix(base, attempt)
		}

		taken, err := m.live.Exists(ctx, t, candidate)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		c := entry.OriginalCase.Clone()
		c.CaseNumber = candidate
		c.TypeCase = t
		err = m.live.InsertExisting(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, err
		}
		m.logger.InfoContext(ctx, "restore candidate taken concurrently; trying next",
			"case_number", candidate,
			"case_type", t,
		)
	}
	return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("no free identifier to restore case %s", base))
}

// PurgeExpired removes archive entries whose retention has elapsed.
func (m *Manager) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := m.archive.PurgeExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge archived cases")
	}
	return n, nil
}
