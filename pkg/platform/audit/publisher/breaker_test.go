package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "casedesk/pkg/platform/audit"
)

type flakySink struct {
	err   error
	calls int
}

func (f *flakySink) Emit(context.Context, audit.Event) error {
	f.calls++
	return f.err
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	sink := &flakySink{err: errors.New("broker unavailable")}
	b := NewBreaker(sink, 2, time.Minute, WithBreakerClock(func() time.Time { return now }))
	ctx := context.Background()

	require.Error(t, b.Emit(ctx, audit.Event{}))
	assert.False(t, b.IsOpen(), "one failure is below the threshold")
	require.Error(t, b.Emit(ctx, audit.Event{}))
	assert.True(t, b.IsOpen())

	err := b.Emit(ctx, audit.Event{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, sink.calls, "open circuit skips the sink")
}

func TestBreaker_ProbesAfterCooldown(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	sink := &flakySink{err: errors.New("broker unavailable")}
	b := NewBreaker(sink, 1, time.Minute, WithBreakerClock(func() time.Time { return now }))
	ctx := context.Background()

	require.Error(t, b.Emit(ctx, audit.Event{}))
	require.True(t, b.IsOpen())

	now = now.Add(time.Minute + time.Second)
	sink.err = nil
	require.NoError(t, b.Emit(ctx, audit.Event{}))
	assert.False(t, b.IsOpen())
	assert.Equal(t, 2, sink.calls)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	sink := &flakySink{err: errors.New("timeout")}
	b := NewBreaker(sink, 2, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Emit(ctx, audit.Event{}))
	sink.err = nil
	require.NoError(t, b.Emit(ctx, audit.Event{}))
	sink.err = errors.New("timeout")
	require.Error(t, b.Emit(ctx, audit.Event{}))
	assert.False(t, b.IsOpen())
}
