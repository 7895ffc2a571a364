package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/attendance/internal/domain"
	"example.com/attendance/internal/observability"
	"example.com/attendance/pkg/events"
)

const attendanceColumns = `attendance_id, assistant_id, source, session_id, call_session_id, center_id, latitude, longitude,
        session_subject, time_recorded, civil_day, delay_minutes, notes, is_deleted, deleted_by, deleted_at, deletion_reason,
        created_at, updated_at`

const defaultListLimit = 50

func scanAttendance(row pgx.Row) (domain.AttendanceRecord, error) {
	var (
		rec       domain.AttendanceRecord
		source    string
		latitude  *float64
		longitude *float64
		civilDay  time.Time
	)
	err := row.Scan(&rec.ID, &rec.AssistantID, &source, &rec.SessionID, &rec.CallSessionID, &rec.CenterID, &latitude, &longitude,
		&rec.SessionSubject, &rec.TimeRecorded, &civilDay, &rec.DelayMinutes, &rec.Notes, &rec.IsDeleted, &rec.DeletedBy, &rec.DeletedAt, &rec.DeletionReason,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return rec, err
	}
	rec.Source = domain.AttendanceSource(source)
	rec.CivilDay = civilDay.Format(domain.CivilDateLayout)
	if latitude != nil && longitude != nil {
		rec.Location = &domain.Coordinate{Latitude: *latitude, Longitude: *longitude}
	}
	return rec, nil
}

func civilDayParam(day string) (time.Time, error) {
	parsed, err := time.Parse(domain.CivilDateLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: civil day %q", domain.ErrValidation, day)
	}
	return parsed, nil
}

func coordinateParams(loc *domain.Coordinate) (any, any) {
	if loc == nil {
		return nil, nil
	}
	return loc.Latitude, loc.Longitude
}

// CreateAttendance inserts the record and its attendance.recorded outbox event atomically.
// The partial unique indexes reject a second live mark with ErrDuplicate.
func (r *Repository) CreateAttendance(ctx context.Context, rec domain.AttendanceRecord) error {
	civilDay, err := civilDayParam(rec.CivilDay)
	if err != nil {
		return err
	}
	latitude, longitude := coordinateParams(rec.Location)

	err = r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO attendance_records (`+attendanceColumns+`)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
			rec.ID, rec.AssistantID, string(rec.Source), rec.SessionID, rec.CallSessionID, rec.CenterID, latitude, longitude,
			rec.SessionSubject, rec.TimeRecorded, civilDay, rec.DelayMinutes, rec.Notes, rec.IsDeleted, rec.DeletedBy, rec.DeletedAt, rec.DeletionReason,
			rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, rec, events.TypeAttendanceRecorded, recordedEvent(rec), rec.CreatedAt)
	})
	if err != nil {
		return err
	}
	observability.RecordAttendancePersisted(rec.CreatedAt)
	return nil
}

func (r *Repository) findLive(ctx context.Context, where string, args ...any) (*domain.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE NOT is_deleted AND ` + where +
		` ORDER BY time_recorded DESC, attendance_id DESC LIMIT 1`
	rec, err := scanAttendance(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &rec, nil
}

// FindSessionAttendance returns the newest live record of the assistant for a session.
func (r *Repository) FindSessionAttendance(ctx context.Context, assistantID, sessionID string) (*domain.AttendanceRecord, error) {
	return r.findLive(ctx, `assistant_id=$1 AND session_id=$2`, assistantID, sessionID)
}

// FindSessionAttendanceBetween restricts FindSessionAttendance to [from, to).
func (r *Repository) FindSessionAttendanceBetween(ctx context.Context, assistantID, sessionID string, from, to time.Time) (*domain.AttendanceRecord, error) {
	return r.findLive(ctx, `assistant_id=$1 AND session_id=$2 AND time_recorded >= $3 AND time_recorded < $4`, assistantID, sessionID, from, to)
}

// FindCallSessionAttendance returns the assistant's live record for a call session.
func (r *Repository) FindCallSessionAttendance(ctx context.Context, assistantID, callSessionID string) (*domain.AttendanceRecord, error) {
	return r.findLive(ctx, `assistant_id=$1 AND call_session_id=$2`, assistantID, callSessionID)
}

// GetAttendance returns a record by ID, including soft-deleted ones.
func (r *Repository) GetAttendance(ctx context.Context, id string) (*domain.AttendanceRecord, error) {
	rec, err := scanAttendance(r.pool.QueryRow(ctx, `SELECT `+attendanceColumns+` FROM attendance_records WHERE attendance_id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &rec, nil
}

// UpdateAttendance applies admin edits to a live record.
func (r *Repository) UpdateAttendance(ctx context.Context, rec domain.AttendanceRecord) error {
	civilDay, err := civilDayParam(rec.CivilDay)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE attendance_records
                SET notes=$2, delay_minutes=$3, time_recorded=$4, civil_day=$5, updated_at=$6
              WHERE attendance_id=$1 AND NOT is_deleted`,
			rec.ID, rec.Notes, rec.DelayMinutes, rec.TimeRecorded, civilDay, rec.UpdatedAt)
		if err != nil {
			return err
		}
		if err := affectedOne(tag, "attendance", rec.ID); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, rec, events.TypeAttendanceChanged, changedEvent(rec, events.ChangeUpdated, "", rec.UpdatedAt), rec.UpdatedAt)
	})
}

// ListAttendance returns records newest first using keyset pagination.
func (r *Repository) ListAttendance(ctx context.Context, filter domain.AttendanceFilter, cursor *domain.Cursor, limit int) ([]domain.AttendanceRecord, *domain.Cursor, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filter.IncludeDeleted {
		clauses = append(clauses, "NOT is_deleted")
	}
	if filter.AssistantID != "" {
		add("assistant_id=$%d", filter.AssistantID)
	}
	if filter.SessionID != "" {
		add("session_id=$%d", filter.SessionID)
	}
	if filter.CallSessionID != "" {
		add("call_session_id=$%d", filter.CallSessionID)
	}
	if filter.Source != "" {
		add("source=$%d", string(filter.Source))
	}
	if filter.From != nil {
		add("time_recorded >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("time_recorded < $%d", *filter.To)
	}
	if cursor != nil {
		args = append(args, cursor.TimeRecorded, cursor.ID)
		clauses = append(clauses, fmt.Sprintf("(time_recorded, attendance_id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + attendanceColumns + ` FROM attendance_records`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY time_recorded DESC, attendance_id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, mapError(err)
	}
	defer rows.Close()

	results := make([]domain.AttendanceRecord, 0, limit)
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, mapError(err)
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{TimeRecorded: last.TimeRecorded, ID: last.ID}
	}
	return results, next, nil
}

// SoftDeleteAttendance flags the record deleted and stores its backup.
func (r *Repository) SoftDeleteAttendance(ctx context.Context, rec domain.AttendanceRecord, backup domain.DeletionBackup) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE attendance_records
                SET is_deleted=TRUE, deleted_by=$2, deleted_at=$3, deletion_reason=$4, updated_at=$5
              WHERE attendance_id=$1 AND NOT is_deleted`,
			rec.ID, rec.DeletedBy, rec.DeletedAt, rec.DeletionReason, rec.UpdatedAt)
		if err != nil {
			return err
		}
		if err := affectedOne(tag, "attendance", rec.ID); err != nil {
			return err
		}
		if err := insertBackup(ctx, tx, backup); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, rec, events.TypeAttendanceChanged, changedEvent(rec, events.ChangeDeleted, rec.DeletionReason, rec.UpdatedAt), rec.UpdatedAt)
	})
}

// RestoreAttendance clears the soft-delete flag. A live record that took the same
// slot in the meantime makes the unique index reject the restore with ErrDuplicate.
func (r *Repository) RestoreAttendance(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		rec, err := scanAttendance(tx.QueryRow(ctx,
			`UPDATE attendance_records
                SET is_deleted=FALSE, deleted_by=NULL, deleted_at=NULL, deletion_reason='', updated_at=NOW()
              WHERE attendance_id=$1
              RETURNING `+attendanceColumns, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: attendance %s", domain.ErrNotFound, id)
			}
			return err
		}
		return r.insertOutbox(ctx, tx, rec, events.TypeAttendanceChanged, changedEvent(rec, events.ChangeRestored, "", rec.UpdatedAt), rec.UpdatedAt)
	})
}
