// Package postgres implements the domain repository on Postgres, with attendance
// changes mirrored into the transactional outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/attendance/internal/domain"
	"example.com/attendance/pkg/events"
)

// Repository provides Postgres-backed persistence for the attendance domain.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ domain.Repository  = (*Repository)(nil)
	_ domain.AuditSink   = (*Repository)(nil)
	_ domain.AuditReader = (*Repository)(nil)
)

// inTx runs fn inside a transaction on a dedicated connection and commits when fn succeeds.
func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return mapError(err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return mapError(err)
	}
	return mapError(tx.Commit(ctx))
}

// mapError translates driver failures into domain sentinels. Errors that are
// already domain errors pass through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", domain.ErrDuplicate, constraintDetail(pgErr))
		case pgErr.Code == "23503", pgErr.Code == "23514", pgErr.Code == "23502", pgErr.Code == "22P02", pgErr.Code == "22001":
			return fmt.Errorf("%w: %s", domain.ErrValidation, constraintDetail(pgErr))
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "53300":
			return fmt.Errorf("%w: %s", domain.ErrStorageUnavailable, pgErr.Message)
		}
		return err
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return err
}

func constraintDetail(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return fmt.Sprintf("%s (%s)", pgErr.Message, pgErr.ConstraintName)
	}
	return pgErr.Message
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.AttendanceRecord) string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeAttendanceRecorded: {
		Topic:         "attendance_recorded",
		SchemaSubject: "attendance_recorded-value",
		PartitionKeyFn: func(a domain.AttendanceRecord) string {
			return a.AssistantID
		},
	},
	events.TypeAttendanceChanged: {
		Topic:         "attendance_changed",
		SchemaSubject: "attendance_changed-value",
		PartitionKeyFn: func(a domain.AttendanceRecord) string {
			return a.ID
		},
	},
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, record domain.AttendanceRecord, eventType string, payload any, at time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s:%d", record.ID, eventType, at.UnixNano())

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"attendance",
		record.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(record),
		body,
		dedupeKey,
	)
	return err
}

func recordedEvent(record domain.AttendanceRecord) events.AttendanceRecorded {
	return events.AttendanceRecorded{
		AttendanceID:   record.ID,
		AssistantID:    record.AssistantID,
		Source:         string(record.Source),
		SessionID:      deref(record.SessionID),
		CallSessionID:  deref(record.CallSessionID),
		CenterID:       deref(record.CenterID),
		SessionSubject: record.SessionSubject,
		TimeRecorded:   record.TimeRecorded,
		CivilDay:       record.CivilDay,
		DelayMinutes:   record.DelayMinutes,
	}
}

func changedEvent(record domain.AttendanceRecord, change, reason string, at time.Time) events.AttendanceChanged {
	return events.AttendanceChanged{
		AttendanceID: record.ID,
		AssistantID:  record.AssistantID,
		Change:       change,
		DelayMinutes: record.DelayMinutes,
		OccurredAt:   at,
		Reason:       reason,
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// affectedOne reports ErrNotFound when an update or delete touched no row.
func affectedOne(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, entity, id)
	}
	return nil
}
