package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/attendance/internal/domain"
)

const activityLogColumns = `activity_log_id, assistant_id, call_session_id, activity, notes, start_time, end_time, duration_minutes, created_by, created_at, updated_at`

func scanActivityLog(row pgx.Row) (domain.ActivityLog, error) {
	var l domain.ActivityLog
	err := row.Scan(&l.ID, &l.AssistantID, &l.CallSessionID, &l.Activity, &l.Notes, &l.StartTime, &l.EndTime,
		&l.DurationMinutes, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func collectActivityLogs(rows pgx.Rows) ([]domain.ActivityLog, error) {
	defer rows.Close()
	out := make([]domain.ActivityLog, 0)
	for rows.Next() {
		entry, err := scanActivityLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, mapError(rows.Err())
}

// GetActivityLog returns nil when the log does not exist.
func (r *Repository) GetActivityLog(ctx context.Context, id string) (*domain.ActivityLog, error) {
	entry, err := scanActivityLog(r.pool.QueryRow(ctx, `SELECT `+activityLogColumns+` FROM activity_logs WHERE activity_log_id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &entry, nil
}

// CreateActivityLog inserts an activity log.
func (r *Repository) CreateActivityLog(ctx context.Context, l domain.ActivityLog) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO activity_logs (`+activityLogColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			l.ID, l.AssistantID, l.CallSessionID, l.Activity, l.Notes, l.StartTime, l.EndTime,
			l.DurationMinutes, l.CreatedBy, l.CreatedAt, l.UpdatedAt)
		return err
	})
}

// UpdateActivityLog replaces an activity log.
func (r *Repository) UpdateActivityLog(ctx context.Context, l domain.ActivityLog) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE activity_logs SET assistant_id=$2, call_session_id=$3, activity=$4, notes=$5, start_time=$6,
                    end_time=$7, duration_minutes=$8, updated_at=$9 WHERE activity_log_id=$1`,
			l.ID, l.AssistantID, l.CallSessionID, l.Activity, l.Notes, l.StartTime, l.EndTime, l.DurationMinutes, l.UpdatedAt)
		if err != nil {
			return err
		}
		return affectedOne(tag, "activity log", l.ID)
	})
}

// ListActivityLogs returns activity logs newest first.
func (r *Repository) ListActivityLogs(ctx context.Context, filter domain.ActivityLogFilter) ([]domain.ActivityLog, error) {
	query := `SELECT ` + activityLogColumns + ` FROM activity_logs WHERE TRUE`
	var args []any
	if filter.AssistantID != "" {
		args = append(args, filter.AssistantID)
		query += fmt.Sprintf(" AND assistant_id=$%d", len(args))
	}
	if filter.CallSessionID != "" {
		args = append(args, filter.CallSessionID)
		query += fmt.Sprintf(" AND call_session_id=$%d", len(args))
	}
	if filter.OpenOnly {
		query += " AND end_time IS NULL"
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY start_time DESC, activity_log_id`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return collectActivityLogs(rows)
}

// DeleteActivityLog removes an activity log and stores its backup.
func (r *Repository) DeleteActivityLog(ctx context.Context, id string, backup domain.DeletionBackup) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM activity_logs WHERE activity_log_id=$1`, id)
		if err != nil {
			return err
		}
		if err := affectedOne(tag, "activity log", id); err != nil {
			return err
		}
		return insertBackup(ctx, tx, backup)
	})
}

// RestoreActivityLog re-inserts an activity log from its snapshot.
func (r *Repository) RestoreActivityLog(ctx context.Context, entry domain.ActivityLog) error {
	return r.CreateActivityLog(ctx, entry)
}

// CloseActivityLogs ends the open logs of a call session at end.
func (r *Repository) CloseActivityLogs(ctx context.Context, callSessionID string, end, now time.Time) ([]domain.ActivityLog, error) {
	var closed []domain.ActivityLog
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		closed, err = closeActivityLogs(ctx, tx, callSessionID, end, now)
		return err
	})
	return closed, err
}

// closeActivityLogs clamps the end to each log's start and stores the rounded duration.
func closeActivityLogs(ctx context.Context, tx pgx.Tx, callSessionID string, end, now time.Time) ([]domain.ActivityLog, error) {
	rows, err := tx.Query(ctx,
		`UPDATE activity_logs
            SET end_time = GREATEST($2::timestamptz, start_time),
                duration_minutes = ROUND(EXTRACT(EPOCH FROM (GREATEST($2::timestamptz, start_time) - start_time)) / 60)::int,
                updated_at = $3
          WHERE call_session_id = $1 AND end_time IS NULL
          RETURNING `+activityLogColumns, callSessionID, end, now)
	if err != nil {
		return nil, err
	}
	return collectActivityLogs(rows)
}
