package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/attendance/internal/domain"
)

const sessionColumns = `session_id, center_id, assistant_id, subject, start_time, recurrence, day_of_week, is_active, created_at, updated_at`

func scanSession(row pgx.Row) (domain.SessionDefinition, error) {
	var (
		d          domain.SessionDefinition
		recurrence string
	)
	err := row.Scan(&d.ID, &d.CenterID, &d.AssistantID, &d.Subject, &d.StartTime, &recurrence, &d.DayOfWeek, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	d.Recurrence = domain.Recurrence(recurrence)
	return d, err
}

func collectSessions(rows pgx.Rows) ([]domain.SessionDefinition, error) {
	defer rows.Close()
	out := make([]domain.SessionDefinition, 0)
	for rows.Next() {
		def, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, mapError(rows.Err())
}

// GetSession returns nil when the definition does not exist.
func (r *Repository) GetSession(ctx context.Context, id string) (*domain.SessionDefinition, error) {
	def, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM session_definitions WHERE session_id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &def, nil
}

// CreateSession inserts a session definition.
func (r *Repository) CreateSession(ctx context.Context, d domain.SessionDefinition) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO session_definitions (`+sessionColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			d.ID, d.CenterID, d.AssistantID, d.Subject, d.StartTime, string(d.Recurrence), d.DayOfWeek, d.IsActive, d.CreatedAt, d.UpdatedAt)
		return err
	})
}

// UpdateSession replaces a session definition.
func (r *Repository) UpdateSession(ctx context.Context, d domain.SessionDefinition) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE session_definitions
                SET center_id=$2, assistant_id=$3, subject=$4, start_time=$5, recurrence=$6, day_of_week=$7, is_active=$8, updated_at=$9
              WHERE session_id=$1`,
			d.ID, d.CenterID, d.AssistantID, d.Subject, d.StartTime, string(d.Recurrence), d.DayOfWeek, d.IsActive, d.UpdatedAt)
		if err != nil {
			return err
		}
		return affectedOne(tag, "session", d.ID)
	})
}

// ListSessions returns definitions matching filter ordered by start time.
func (r *Repository) ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.SessionDefinition, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.CenterID != "" {
		args = append(args, filter.CenterID)
		clauses = append(clauses, fmt.Sprintf("center_id=$%d", len(args)))
	}
	if filter.AssistantID != "" {
		args = append(args, filter.AssistantID)
		clauses = append(clauses, fmt.Sprintf("assistant_id=$%d", len(args)))
	}
	if filter.Recurrence != "" {
		args = append(args, string(filter.Recurrence))
		clauses = append(clauses, fmt.Sprintf("recurrence=$%d", len(args)))
	}

	query := `SELECT ` + sessionColumns + ` FROM session_definitions`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_time, session_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return collectSessions(rows)
}

// ListSessionsForDay pushes the civil-day candidate filter down to SQL.
func (r *Repository) ListSessionsForDay(ctx context.Context, assistantID string, from, to time.Time, dayOfWeek int) ([]domain.SessionDefinition, error) {
	const query = `SELECT ` + sessionColumns + `
        FROM session_definitions
        WHERE (assistant_id IS NULL OR assistant_id = $1)
          AND ((recurrence = 'one_time' AND start_time >= $2 AND start_time < $3)
            OR (recurrence = 'weekly' AND is_active AND day_of_week = $4))
        ORDER BY start_time, session_id`

	rows, err := r.pool.Query(ctx, query, assistantID, from, to, dayOfWeek)
	if err != nil {
		return nil, mapError(err)
	}
	return collectSessions(rows)
}

// DeleteSession removes a definition and stores its backup. Attendance keeps its
// cached subject because session references on records are soft.
func (r *Repository) DeleteSession(ctx context.Context, id string, backup domain.DeletionBackup) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM session_definitions WHERE session_id=$1`, id)
		if err != nil {
			return err
		}
		if err := affectedOne(tag, "session", id); err != nil {
			return err
		}
		return insertBackup(ctx, tx, backup)
	})
}

// RestoreSession re-inserts a definition from its snapshot.
func (r *Repository) RestoreSession(ctx context.Context, def domain.SessionDefinition) error {
	return r.CreateSession(ctx, def)
}
