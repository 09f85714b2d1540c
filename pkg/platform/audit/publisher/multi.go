package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "casedesk/pkg/platform/audit"
)

// Multi fans an event out to a primary emitter and any number of secondary
// sinks. Every sink sees the event even when the primary fails, so an outage
// of the history store does not also hide the event from the stream. Only the
// primary's error is returned; secondary failures are logged.
type Multi struct {
	primary audit.Emitter
	sinks   []audit.Emitter
	logger  *slog.Logger
}

func NewMulti(logger *slog.Logger, primary audit.Emitter, sinks ...audit.Emitter) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{primary: primary, sinks: sinks, logger: logger}
}

func (m *Multi) Emit(ctx context.Context, event audit.Event) error {
	// Every sink must see the same ID so consumers can deduplicate.
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	primaryErr := m.primary.Emit(ctx, event)
	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			m.logger.WarnContext(ctx, "audit sink failed",
				"event_id", event.ID.String(),
				"action", event.Action,
				"error", err,
			)
		}
	}
	return primaryErr
}
