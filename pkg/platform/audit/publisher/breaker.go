package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	audit "casedesk/pkg/platform/audit"
)

// ErrCircuitOpen is returned by Breaker.Emit while the wrapped sink is skipped.
var ErrCircuitOpen = errors.New("audit sink circuit open")

// Breaker guards a secondary sink. After threshold consecutive failures the
// circuit opens and events are rejected without touching the sink until the
// cooldown elapses; the next event then probes it again.
type Breaker struct {
	next audit.Emitter
	now  func() time.Time

	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
}

type BreakerOption func(*Breaker)

// WithBreakerClock overrides the clock used for cooldowns.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBreaker wraps next. Non-positive threshold and cooldown fall back to 5
// failures and one minute.
func NewBreaker(next audit.Emitter, threshold int, cooldown time.Duration, opts ...BreakerOption) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	b := &Breaker{
		next:      next,
		now:       time.Now,
		threshold: threshold,
		cooldown:  cooldown,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Emit(ctx context.Context, event audit.Event) error {
	if b.IsOpen() {
		return ErrCircuitOpen
	}
	err := b.next.Emit(ctx, event)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.threshold {
			b.openUntil = b.now().Add(b.cooldown)
		}
		return err
	}
	b.failures = 0
	b.openUntil = time.Time{}
	return nil
}

// IsOpen reports whether events are currently being rejected.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.openUntil.IsZero() && b.now().Before(b.openUntil)
}
