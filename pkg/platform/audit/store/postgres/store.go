package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "casedesk/pkg/platform/audit"
	"casedesk/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Store implements audit.Store on the audit_history table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store. The table is created by
// internal/platform/postgres.EnsureSchema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an event. Events are idempotent by ID.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_history (
			id, occurred_at, actor, action, message,
			case_number, case_type, request_id, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID.String(),
		event.Timestamp,
		event.Actor,
		string(event.Action),
		event.Message,
		event.CaseNumber,
		event.CaseType,
		event.RequestID,
		event.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("audit event %s: %w", event.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns events matching filter, most recent first.
func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Actor != "" {
		conds = append(conds, "actor = "+arg(filter.Actor))
	}
	if filter.From != nil {
		conds = append(conds, "occurred_at >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conds = append(conds, "occurred_at <= "+arg(*filter.To))
	}

	query := `
		SELECT id, occurred_at, actor, action, message,
			   case_number, case_type, request_id, expires_at
		FROM audit_history`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// PurgeExpired deletes events whose retention has elapsed.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_history WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit events: %w", err)
	}
	return int(n), nil
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	events := make([]audit.Event, 0)
	for rows.Next() {
		var (
			event  audit.Event
			id     string
			action string
		)
		err := rows.Scan(
			&id,
			&event.Timestamp,
			&event.Actor,
			&action,
			&event.Message,
			&event.CaseNumber,
			&event.CaseType,
			&event.RequestID,
			&event.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse audit event id: %w", err)
		}
		event.ID = parsed
		event.Action = audit.Action(action)
		event.Timestamp = event.Timestamp.UTC()
		event.ExpiresAt = event.ExpiresAt.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
