package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/attendance/pkg/events"
)

// PersistenceHandler writes consumed attendance events into attendance_event_log.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores the event payload. Redelivery of the same topic offset is a no-op.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	aggregateID, err := aggregateOf(msg)
	if err != nil {
		return err
	}

	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx,
		`INSERT INTO attendance_event_log (event_type, aggregate_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		aggregateID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	return err
}

// aggregateOf checks the payload against the event type and falls back to the
// payload's attendance_id when the aggregate_id header is absent. Every failure
// here is permanent and wraps ErrRejected.
func aggregateOf(msg Message) (string, error) {
	var attendanceID string
	switch msg.EventType {
	case events.TypeAttendanceRecorded:
		var evt events.AttendanceRecorded
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return "", fmt.Errorf("%w: decode %s: %v", ErrRejected, msg.EventType, err)
		}
		attendanceID = evt.AttendanceID
	case events.TypeAttendanceChanged:
		var evt events.AttendanceChanged
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			return "", fmt.Errorf("%w: decode %s: %v", ErrRejected, msg.EventType, err)
		}
		attendanceID = evt.AttendanceID
	default:
		return "", fmt.Errorf("%w: unsupported event_type %q", ErrRejected, msg.EventType)
	}

	if msg.AggregateID != "" {
		return msg.AggregateID, nil
	}
	if attendanceID == "" {
		return "", fmt.Errorf("%w: %s without attendance_id", ErrRejected, msg.EventType)
	}
	return attendanceID, nil
}
