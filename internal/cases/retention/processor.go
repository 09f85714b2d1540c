package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"casedesk/internal/cases/metrics"
)

// Purger deletes records whose expiry is at or before now.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Processor runs the retention purges.
type Processor struct {
	archive Purger
	audit   Purger
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Processor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// NewProcessor builds a Processor. audit may be nil when history is not retained.
func NewProcessor(archive, audit Purger, opts ...Option) *Processor {
	p := &Processor{
		archive: archive,
		audit:   audit,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handler registers the retention task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPurgeArchive, func(ctx context.Context, _ *asynq.Task) error {
		_, err := p.PurgeArchive(ctx)
		return err
	})
	mux.HandleFunc(TaskPurgeAudit, func(ctx context.Context, _ *asynq.Task) error {
		_, err := p.PurgeAudit(ctx)
		return err
	})
	return mux
}

// PurgeArchive removes expired archive entries.
func (p *Processor) PurgeArchive(ctx context.Context) (int, error) {
	return p.purge(ctx, "archive", p.archive)
}

// PurgeAudit removes expired audit history.
func (p *Processor) PurgeAudit(ctx context.Context) (int, error) {
	return p.purge(ctx, "audit", p.audit)
}

// Run executes the purge named by taskType synchronously.
func (p *Processor) Run(ctx context.Context, taskType string) (int, error) {
	switch taskType {
	case TaskPurgeArchive:
		return p.PurgeArchive(ctx)
	case TaskPurgeAudit:
		return p.PurgeAudit(ctx)
	default:
		return 0, fmt.Errorf("unknown retention task %q", taskType)
	}
}

func (p *Processor) purge(ctx context.Context, target string, purger Purger) (int, error) {
	if purger == nil {
		return 0, nil
	}
	start := time.Now()
	n, err := purger.PurgeExpired(ctx, p.now())
	if err != nil {
		p.logger.ErrorContext(ctx, "retention purge failed",
			"target", target,
			"error", err,
		)
		return 0, fmt.Errorf("purge %s: %w", target, err)
	}
	p.metrics.AddPurged(target, n)
	p.logger.InfoContext(ctx, "retention purge completed",
		"target", target,
		"purged", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return n, nil
}
