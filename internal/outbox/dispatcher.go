// Package outbox delivers attendance events from the outbox table to Kafka.
package outbox

import (
	"cmp"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"example.com/attendance/internal/observability"
	"example.com/attendance/pkg/events"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Message is an outbox row claimed for delivery. Field order matches claimQuery.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// schemaCatalog holds the JSON schema registered for each event type.
var schemaCatalog = map[string]string{
	events.TypeAttendanceRecorded: attendanceRecordedSchema,
	events.TypeAttendanceChanged:  attendanceChangedSchema,
}

const claimQuery = `UPDATE outbox SET claimed_at = NOW()
     WHERE event_id IN (
           SELECT event_id FROM outbox
            WHERE published_at IS NULL
            ORDER BY event_id
            LIMIT $1
            FOR UPDATE SKIP LOCKED)
 RETURNING event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload`

// Dispatcher polls the outbox and publishes attendance events, parking whole
// batches in the DLQ when delivery fails.
type Dispatcher struct {
	pool             *pgxpool.Pool
	producer         messageWriter
	registry         schemaRegistrar
	dlq              *DLQWriter
	pollInterval     time.Duration
	batchSize        int
	schemaIDs        sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		pool:             pool,
		producer:         producer,
		registry:         registry,
		dlq:              NewDLQWriter(pool),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		shutdownComplete: make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("outbox dispatcher error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.claim(ctx)
	if err != nil || len(messages) == 0 {
		return err
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.deliver(ctx, messages); err != nil {
		kind := classifyFailure(err)
		log.Printf("outbox: %s failure for %d events: %v", kind, len(messages), err)
		failedCounter.WithLabelValues(string(kind)).Add(float64(len(messages)))
		if dlqErr := d.dlq.WriteBatch(ctx, messages, err); dlqErr != nil {
			return dlqErr
		}
		for _, msg := range messages {
			dlqCounter.WithLabelValues(msg.Topic, string(kind)).Inc()
		}
		return d.markPublished(ctx, messages)
	}

	for _, msg := range messages {
		deliveredCounter.WithLabelValues(msg.Topic).Inc()
	}
	observability.RecordAttendancePublished(time.Now())
	return d.markPublished(ctx, messages)
}

// claim stamps up to batchSize unpublished rows and returns them in event order.
func (d *Dispatcher) claim(ctx context.Context) ([]Message, error) {
	rows, err := d.pool.Query(ctx, claimQuery, d.batchSize)
	if err != nil {
		return nil, err
	}
	messages, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Message])
	if err != nil {
		return nil, err
	}
	slices.SortFunc(messages, func(a, b Message) int { return cmp.Compare(a.EventID, b.EventID) })
	return messages, nil
}

// deliver frames every message and writes one Kafka batch per topic, topics in
// first-seen order. Nothing is written if any message cannot be framed.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	byTopic := make(map[string][]kafka.Message)
	var topics []string

	for _, msg := range messages {
		record, err := d.frame(ctx, msg)
		if err != nil {
			return err
		}
		if _, seen := byTopic[msg.Topic]; !seen {
			topics = append(topics, msg.Topic)
		}
		byTopic[msg.Topic] = append(byTopic[msg.Topic], record)
	}

	for _, topic := range topics {
		if err := d.producer.WriteMessages(ctx, topic, byTopic[topic]...); err != nil {
			return &deliveryError{kind: FailureKafka, topic: topic, err: err}
		}
	}
	return nil
}

func (d *Dispatcher) frame(ctx context.Context, msg Message) (kafka.Message, error) {
	schema, ok := schemaCatalog[msg.EventType]
	if !ok {
		return kafka.Message{}, &deliveryError{
			kind:  FailureUnknownEvent,
			topic: msg.Topic,
			err:   fmt.Errorf("no schema metadata for event_type=%s", msg.EventType),
		}
	}

	schemaID, err := d.schemaID(ctx, msg.SchemaSubject, schema)
	if err != nil {
		return kafka.Message{}, &deliveryError{kind: FailureSchema, topic: msg.Topic, err: err}
	}

	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: encodeWireFormat(schemaID, msg.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.EventType)},
			{Key: "schema_subject", Value: []byte(msg.SchemaSubject)},
			{Key: "aggregate_id", Value: []byte(msg.AggregateID)},
			{Key: "event_id", Value: []byte(strconv.FormatInt(msg.EventID, 10))},
		},
	}, nil
}

// schemaID resolves the registry id for subject, registering schema the first
// time the pair is seen by this process.
func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	key := subject + "::" + schema
	if id, ok := d.schemaIDs.Load(key); ok {
		schemaLookupCounter.WithLabelValues("cache").Inc()
		return id.(int), nil
	}
	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}
	schemaLookupCounter.WithLabelValues("registry").Inc()
	d.schemaIDs.Store(key, id)
	return id, nil
}

func (d *Dispatcher) markPublished(ctx context.Context, messages []Message) error {
	ids := make([]int64, len(messages))
	for i, msg := range messages {
		ids[i] = msg.EventID
	}

	tag, err := d.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	markedPublishedCounter.Add(float64(tag.RowsAffected()))
	return nil
}

// encodeWireFormat prefixes payload with the Confluent magic byte and schema id.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5, 5+len(payload))
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	return append(frame, payload...)
}
