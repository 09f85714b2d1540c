package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	"casedesk/internal/cases/models"
	dErrors "casedesk/pkg/domain-errors"
)

// Unlock releases a lock obtained from a Locker.
type Unlock func(ctx context.Context) error

// Locker serialises allocation for one (type, year) across processes.
type Locker interface {
	Lock(ctx context.Context, t models.CaseType, year int) (Unlock, error)
}

// LockKey is the Redis key guarding allocation for t in year.
func LockKey(t models.CaseType, year int) string {
	return fmt.Sprintf("lock:case-number:%s:%d", t, year)
}

// RedisLocker implements Locker with bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

const (
	defaultLockTTL     = 10 * time.Second
	defaultLockBackoff = 50 * time.Millisecond
	defaultLockRetries = 40
)

// NewRedisLocker wraps an existing redislock client. ttl <= 0 uses a 10s lease.
func NewRedisLocker(client *redislock.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(defaultLockBackoff), defaultLockRetries),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, t models.CaseType, year int) (Unlock, error) {
	lock, err := l.client.Obtain(ctx, LockKey(t, year), l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "case number allocation is busy, retry")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to obtain allocation lock")
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
