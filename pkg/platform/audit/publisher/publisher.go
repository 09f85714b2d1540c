// Package publisher records audit events into an audit.Store, synchronously
// or through a bounded buffer drained by a background goroutine.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "casedesk/pkg/platform/audit"
)

// DefaultRetention is how long history entries are kept.
const DefaultRetention = 30 * 24 * time.Hour

// ErrBufferFull is returned by Emit in async mode when the buffer is full.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher stamps events and appends them to a store.
type Publisher struct {
	store     audit.Store
	retention time.Duration
	logger    *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit enqueue events into a buffer of size n instead of
// writing them on the caller's goroutine.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

func WithRetention(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.retention = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:     store,
		retention: DefaultRetention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records event. Missing ID and Timestamp are filled in, and ExpiresAt
// is derived from the retention period.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ExpiresAt.IsZero() {
		event.ExpiresAt = event.Timestamp.Add(p.retention)
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"actor", event.Actor,
			"case_number", event.CaseNumber,
		)
		return ErrBufferFull
	}
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"actor", event.Actor,
				"case_number", event.CaseNumber,
				"error", err,
			)
		}
	}
}

// List returns recorded events matching filter, most recent first.
func (p *Publisher) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	return p.store.List(ctx, filter)
}

// PurgeExpired removes events whose retention has elapsed.
func (p *Publisher) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	return p.store.PurgeExpired(ctx, now)
}

// Close stops accepting async events and waits for the buffer to drain.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}
