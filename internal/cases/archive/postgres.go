package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"casedesk/internal/cases/models"
	"casedesk/pkg/platform/sentinel"
)

const archiveColumns = `id, original_collection, snapshot, deleted_at, deleted_by, expires_at`

// PostgresStore keeps archive entries in the archived_cases table with the
// case snapshot as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, entry *models.ArchivedCase) error {
	snapshot, err := json.Marshal(entry.OriginalCase)
	if err != nil {
		return fmt.Errorf("marshal archive snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO archived_cases (id, case_number, original_collection, snapshot, deleted_at, deleted_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID.String(), entry.OriginalCase.CaseNumber, string(entry.OriginalCollection), snapshot,
		entry.DeletedAt, entry.DeletedBy, entry.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("archive entry %s: %w", entry.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert archive entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM archived_cases WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete archive entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindLatestByNumber(ctx context.Context, number string) (*models.ArchivedCase, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+archiveColumns+` FROM archived_cases
		WHERE case_number = $1
		ORDER BY deleted_at DESC
		LIMIT 1
	`, number)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find archive entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.ArchivedCase, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+archiveColumns+` FROM archived_cases ORDER BY deleted_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list archive entries: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ArchivedCase, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive entries: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM archived_cases WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge archive entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanEntry(row pgx.Row) (*models.ArchivedCase, error) {
	var (
		entry      models.ArchivedCase
		id         string
		collection string
		snapshot   []byte
	)
	if err := row.Scan(&id, &collection, &snapshot, &entry.DeletedAt, &entry.DeletedBy, &entry.ExpiresAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse archive id: %w", err)
	}
	if err := json.Unmarshal(snapshot, &entry.OriginalCase); err != nil {
		return nil, fmt.Errorf("unmarshal archive snapshot: %w", err)
	}
	entry.ID = parsed
	entry.OriginalCollection = models.CaseType(collection)
	entry.DeletedAt = entry.DeletedAt.UTC()
	entry.ExpiresAt = entry.ExpiresAt.UTC()
	return &entry, nil
}
