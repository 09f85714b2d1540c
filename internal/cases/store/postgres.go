package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"casedesk/internal/cases/models"
	"casedesk/pkg/platform/sentinel"
)

const pgUniqueViolation = "23505"

const caseColumns = `case_number, type_case, service_type, dependency, priority, status,
	reported_at, reported_by, assigned_technician, effectiveness_rating, satisfaction_rating,
	to_rating, rated, service_data, observations, created_at, updated_at`

// PostgresCollection stores one case type in its own table
// (preventive_cases / corrective_cases). Tables are created by
// internal/platform/postgres.EnsureSchema.
type PostgresCollection struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresCollection binds a collection to the table of t.
func NewPostgresCollection(pool *pgxpool.Pool, t models.CaseType) *PostgresCollection {
	return &PostgresCollection{pool: pool, table: pgx.Identifier{t.Collection()}.Sanitize()}
}

type caseRow struct {
	reportedBy    []byte
	technician    []byte
	effectiveness *int
	satisfaction  *int
	serviceData   []byte
}

func encodeCase(c *models.Case) (caseRow, error) {
	var row caseRow
	var err error
	if row.reportedBy, err = json.Marshal(c.ReportedBy); err != nil {
		return row, fmt.Errorf("marshal reported_by: %w", err)
	}
	if c.AssignedTechnician != nil {
		if row.technician, err = json.Marshal(c.AssignedTechnician); err != nil {
			return row, fmt.Errorf("marshal assigned_technician: %w", err)
		}
	}
	if c.EffectivenessRating != nil {
		v := c.EffectivenessRating.Value
		row.effectiveness = &v
	}
	if c.SatisfactionRating != nil {
		v := c.SatisfactionRating.Value
		row.satisfaction = &v
	}
	if row.serviceData, err = json.Marshal(c.ServiceData); err != nil {
		return row, fmt.Errorf("marshal service_data: %w", err)
	}
	return row, nil
}

// nullableJSON keeps a nil payload as SQL NULL.
func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

func scanCase(row pgx.Row) (*models.Case, error) {
	var (
		c        models.Case
		typeCase string
		status   string
		raw      caseRow
	)
	err := row.Scan(
		&c.CaseNumber, &typeCase, &c.ServiceType, &c.Dependency, &c.Priority, &status,
		&c.ReportedAt, &raw.reportedBy, &raw.technician, &raw.effectiveness, &raw.satisfaction,
		&c.ToRating, &c.Rated, &raw.serviceData, &c.Observations, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.TypeCase = models.CaseType(typeCase)
	c.Status = models.Status(status)
	c.ReportedAt = c.ReportedAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if err := json.Unmarshal(raw.reportedBy, &c.ReportedBy); err != nil {
		return nil, fmt.Errorf("unmarshal reported_by: %w", err)
	}
	if len(raw.technician) > 0 {
		var tech models.UserRef
		if err := json.Unmarshal(raw.technician, &tech); err != nil {
			return nil, fmt.Errorf("unmarshal assigned_technician: %w", err)
		}
		c.AssignedTechnician = &tech
	}
	if raw.effectiveness != nil {
		c.EffectivenessRating = &models.Rating{Value: *raw.effectiveness}
	}
	if raw.satisfaction != nil {
		c.SatisfactionRating = &models.Rating{Value: *raw.satisfaction}
	}
	if len(raw.serviceData) > 0 {
		if err := json.Unmarshal(raw.serviceData, &c.ServiceData); err != nil {
			return nil, fmt.Errorf("unmarshal service_data: %w", err)
		}
	}
	return &c, nil
}

func (s *PostgresCollection) Insert(ctx context.Context, c *models.Case) error {
	row, err := encodeCase(c)
	if err != nil {
		return err
	}
	query := `INSERT INTO ` + s.table + ` (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err = s.pool.Exec(ctx, query,
		c.CaseNumber, string(c.TypeCase), c.ServiceType, c.Dependency, c.Priority, string(c.Status),
		c.ReportedAt, row.reportedBy, nullableJSON(row.technician), row.effectiveness, row.satisfaction,
		c.ToRating, c.Rated, row.serviceData, c.Observations, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("case %s: %w", c.CaseNumber, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *PostgresCollection) FindByNumber(ctx context.Context, number string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM ` + s.table + ` WHERE case_number = $1`
	c, err := scanCase(s.pool.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find case: %w", err)
	}
	return c, nil
}

func (s *PostgresCollection) Exists(ctx context.Context, number string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM ` + s.table + ` WHERE case_number = $1)`
	if err := s.pool.QueryRow(ctx, query, number).Scan(&exists); err != nil {
		return false, fmt.Errorf("check case exists: %w", err)
	}
	return exists, nil
}

// MaxNumberForYear only considers plain eight-digit numbers; fixed width makes
// the lexical maximum the numeric maximum.
func (s *PostgresCollection) MaxNumberForYear(ctx context.Context, year int) (string, error) {
	var number string
	query := `SELECT case_number FROM ` + s.table + `
		WHERE case_number ~ '^[0-9]{8}$' AND left(case_number, 4) = $1
		ORDER BY case_number DESC
		LIMIT 1`
	err := s.pool.QueryRow(ctx, query, fmt.Sprintf("%04d", year)).Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("max case number: %w", err)
	}
	return number, nil
}

func (s *PostgresCollection) Update(ctx context.Context, c *models.Case) error {
	row, err := encodeCase(c)
	if err != nil {
		return err
	}
	query := `UPDATE ` + s.table + ` SET
		service_type = $2, dependency = $3, priority = $4, status = $5,
		assigned_technician = $6, effectiveness_rating = $7, satisfaction_rating = $8,
		to_rating = $9, rated = $10, service_data = $11, observations = $12, updated_at = $13
		WHERE case_number = $1`
	tag, err := s.pool.Exec(ctx, query,
		c.CaseNumber, c.ServiceType, c.Dependency, c.Priority, string(c.Status),
		nullableJSON(row.technician), row.effectiveness, row.satisfaction,
		c.ToRating, c.Rated, row.serviceData, c.Observations, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresCollection) Delete(ctx context.Context, number string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE case_number = $1`, number)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresCollection) Search(ctx context.Context, q models.Query) ([]*models.Case, error) {
	where, args := buildWhere(q)
	query := `SELECT ` + caseColumns + ` FROM ` + s.table + where + ` ORDER BY reported_at DESC, case_number DESC`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search cases: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

func (s *PostgresCollection) ListAll(ctx context.Context) ([]*models.Case, error) {
	return s.Search(ctx, models.Query{})
}

// buildWhere translates q into a parameterised WHERE clause. Name criteria
// are ILIKE substring matches with LIKE metacharacters escaped.
func buildWhere(q models.Query) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.CaseNumber != "" {
		conds = append(conds, "case_number = "+arg(q.CaseNumber))
	}
	if q.ServiceType != "" {
		conds = append(conds, "service_type = "+arg(q.ServiceType))
	}
	if q.Dependency != "" {
		conds = append(conds, "dependency = "+arg(q.Dependency))
	}
	if q.Priority != "" {
		conds = append(conds, "priority = "+arg(q.Priority))
	}
	if q.Status != "" {
		conds = append(conds, "status = "+arg(string(q.Status)))
	}
	if q.Type != "" {
		conds = append(conds, "type_case = "+arg(string(q.Type)))
	}
	if q.ReportedByID != "" {
		conds = append(conds, "reported_by->>'id' = "+arg(q.ReportedByID))
	}
	if q.ReportedByName != "" {
		conds = append(conds, "reported_by->>'name' ILIKE "+arg(likePattern(q.ReportedByName)))
	}
	if q.TechnicianID != "" {
		conds = append(conds, "assigned_technician->>'id' = "+arg(q.TechnicianID))
	}
	if q.TechnicianName != "" {
		conds = append(conds, "assigned_technician->>'name' ILIKE "+arg(likePattern(q.TechnicianName)))
	}
	if q.EquipmentName != "" {
		p := arg(likePattern(q.EquipmentName))
		conds = append(conds, "(service_data->>'name' ILIKE "+p+
			" OR EXISTS (SELECT 1 FROM jsonb_array_elements(COALESCE(service_data->'equipments', '[]'::jsonb)) AS e WHERE e->>'name' ILIKE "+p+"))")
	}
	if q.MinEffectiveness != nil {
		conds = append(conds, "effectiveness_rating >= "+arg(*q.MinEffectiveness))
	}
	if q.MinSatisfaction != nil {
		conds = append(conds, "satisfaction_rating >= "+arg(*q.MinSatisfaction))
	}
	if q.From != nil {
		conds = append(conds, "reported_at >= "+arg(*q.From))
	}
	if q.To != nil {
		conds = append(conds, "reported_at <= "+arg(*q.To))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(needle string) string {
	return "%" + likeEscaper.Replace(needle) + "%"
}
