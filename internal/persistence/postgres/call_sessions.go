package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/attendance/internal/domain"
)

const callSessionColumns = `call_session_id, title, start_time, end_time, status, started_by, created_at, updated_at`

func scanCallSession(row pgx.Row) (domain.CallSession, error) {
	var (
		c      domain.CallSession
		status string
	)
	err := row.Scan(&c.ID, &c.Title, &c.StartTime, &c.EndTime, &status, &c.StartedBy, &c.CreatedAt, &c.UpdatedAt)
	c.Status = domain.CallSessionStatus(status)
	return c, err
}

func collectCallSessions(rows pgx.Rows) ([]domain.CallSession, error) {
	defer rows.Close()
	out := make([]domain.CallSession, 0)
	for rows.Next() {
		call, err := scanCallSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, call)
	}
	return out, mapError(rows.Err())
}

// GetCallSession returns nil when the call session does not exist.
func (r *Repository) GetCallSession(ctx context.Context, id string) (*domain.CallSession, error) {
	call, err := scanCallSession(r.pool.QueryRow(ctx, `SELECT `+callSessionColumns+` FROM call_sessions WHERE call_session_id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &call, nil
}

// CreateCallSession inserts a call session.
func (r *Repository) CreateCallSession(ctx context.Context, c domain.CallSession) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO call_sessions (`+callSessionColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			c.ID, c.Title, c.StartTime, c.EndTime, string(c.Status), c.StartedBy, c.CreatedAt, c.UpdatedAt)
		return err
	})
}

// UpdateCallSession replaces a call session.
func (r *Repository) UpdateCallSession(ctx context.Context, c domain.CallSession) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE call_sessions SET title=$2, start_time=$3, end_time=$4, status=$5, started_by=$6, updated_at=$7 WHERE call_session_id=$1`,
			c.ID, c.Title, c.StartTime, c.EndTime, string(c.Status), c.StartedBy, c.UpdatedAt)
		if err != nil {
			return err
		}
		return affectedOne(tag, "call session", c.ID)
	})
}

// ListCallSessions returns call sessions newest first.
func (r *Repository) ListCallSessions(ctx context.Context) ([]domain.CallSession, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+callSessionColumns+` FROM call_sessions ORDER BY created_at DESC, call_session_id`)
	if err != nil {
		return nil, mapError(err)
	}
	return collectCallSessions(rows)
}

// DeleteCallSession removes a call session and stores its backup.
func (r *Repository) DeleteCallSession(ctx context.Context, id string, backup domain.DeletionBackup) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM call_sessions WHERE call_session_id=$1`, id)
		if err != nil {
			return err
		}
		if err := affectedOne(tag, "call session", id); err != nil {
			return err
		}
		return insertBackup(ctx, tx, backup)
	})
}

// RestoreCallSession re-inserts a call session from its snapshot.
func (r *Repository) RestoreCallSession(ctx context.Context, call domain.CallSession) error {
	return r.CreateCallSession(ctx, call)
}

// EndExpiredCallSessions completes active sessions whose end time has passed and
// closes their open activity logs at the session end time.
func (r *Repository) EndExpiredCallSessions(ctx context.Context, now time.Time) ([]domain.CallSession, error) {
	var ended []domain.CallSession
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`UPDATE call_sessions SET status='completed', updated_at=$1
              WHERE status='active' AND end_time IS NOT NULL AND end_time <= $1
              RETURNING `+callSessionColumns, now)
		if err != nil {
			return err
		}
		ended, err = collectCallSessions(rows)
		if err != nil {
			return err
		}
		for _, call := range ended {
			if _, err := closeActivityLogs(ctx, tx, call.ID, *call.EndTime, now); err != nil {
				return err
			}
		}
		return nil
	})
	return ended, err
}
