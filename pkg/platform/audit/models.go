// Package audit records who did what to which case. Events are append-only;
// stores keep them until ExpiresAt and sinks may fan them out further.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names a recorded mutation.
type Action string

const (
	ActionCaseCreated  Action = "case_created"
	ActionCaseUpdated  Action = "case_updated"
	ActionCaseArchived Action = "case_archived"
	ActionCaseRestored Action = "case_restored"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Actor      string    `json:"actor"`
	Action     Action    `json:"action"`
	Message    string    `json:"message"`
	CaseNumber string    `json:"caseNumber,omitempty"`
	CaseType   string    `json:"caseType,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Filter narrows a history listing. Zero fields do not constrain; date
// bounds are inclusive.
type Filter struct {
	Actor string
	From  *time.Time
	To    *time.Time
}

// Matches evaluates f against e in memory.
func (f Filter) Matches(e Event) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	// List returns matching events, most recent first.
	List(ctx context.Context, filter Filter) ([]Event, error)
	// PurgeExpired removes events with ExpiresAt <= now and reports how many.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Emitter accepts events for recording.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
