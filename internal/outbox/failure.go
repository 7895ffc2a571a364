package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FailureKind labels why an outbox batch could not reach Kafka.
type FailureKind string

const (
	FailureUnknownEvent FailureKind = "unknown_event"
	FailureSchema       FailureKind = "schema_registry"
	FailureKafka        FailureKind = "kafka_write"
	FailureOther        FailureKind = "other"
)

type deliveryError struct {
	kind  FailureKind
	topic string
	err   error
}

func (e *deliveryError) Error() string { return e.err.Error() }

func (e *deliveryError) Unwrap() error { return e.err }

func classifyFailure(err error) FailureKind {
	var de *deliveryError
	if errors.As(err, &de) {
		return de.kind
	}
	return FailureOther
}

// DLQWriter parks undeliverable attendance events in outbox_dlq so the DLQ
// manager can replay them.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// WriteBatch stores every message with a reason built from cause. The rows are
// written in one transaction so a batch is parked entirely or not at all.
func (w *DLQWriter) WriteBatch(ctx context.Context, messages []Message, cause error) error {
	kind := classifyFailure(cause)

	batch := &pgx.Batch{}
	for _, msg := range messages {
		batch.Queue(
			`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, NOW())`,
			msg.EventID, msg.EventType, msg.Topic, []byte(msg.Payload), dlqReason(kind, cause, msg.Topic),
			msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey,
		)
	}

	return pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for i := range messages {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("park event %d: %w", messages[i].EventID, err)
			}
		}
		return results.Close()
	})
}

func dlqReason(kind FailureKind, cause error, topic string) string {
	return fmt.Sprintf("%s: %v (topic=%s)", kind, cause, topic)
}
