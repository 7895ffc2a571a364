//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"example.com/attendance/internal/testsupport"
	"example.com/attendance/pkg/events"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	attendanceID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, attendanceID, events.TypeAttendanceRecorded))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter.WithLabelValues("attendance_recorded"))
	beforeMarked := testutil.ToFloat64(markedPublishedCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, "attendance_recorded", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)
	require.Equal(t, events.TypeAttendanceRecorded, headerMap(producer.writes[0].messages[0])["event_type"])
	require.Equal(t, attendanceID, headerMap(producer.writes[0].messages[0])["aggregate_id"])

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter.WithLabelValues("attendance_recorded")), 0.0001)
	require.InDelta(t, beforeMarked+1, testutil.ToFloat64(markedPublishedCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	attendanceID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, attendanceID, events.TypeAttendanceRecorded))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter.WithLabelValues(string(FailureKafka)))
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues("attendance_recorded", string(FailureKafka)))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter.WithLabelValues(string(FailureKafka))), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues("attendance_recorded", string(FailureKafka))), 0.0001)

	var dlqCount int
	var reason string
	err := pool.QueryRow(ctx, `SELECT COUNT(*), MAX(reason) FROM outbox_dlq WHERE aggregate_id = $1`, attendanceID).Scan(&dlqCount, &reason)
	require.NoError(t, err)
	require.Equal(t, 1, dlqCount)
	require.Equal(t, "kafka_write: kafka write failed (topic=attendance_recorded)", reason)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherGroupsBatchByTopic(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeAttendanceRecorded))
	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeAttendanceRecorded))
	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeAttendanceChanged))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 21}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeRecorded := testutil.ToFloat64(deliveredCounter.WithLabelValues("attendance_recorded"))
	beforeChanged := testutil.ToFloat64(deliveredCounter.WithLabelValues("attendance_changed"))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 2)
	perTopic := map[string]int{}
	for _, batch := range producer.writes {
		perTopic[batch.topic] = len(batch.messages)
	}
	require.Equal(t, map[string]int{"attendance_recorded": 2, "attendance_changed": 1}, perTopic)
	require.Len(t, registry.calls, 2, "one registry lookup per subject")
	require.Equal(t, "attendance_recorded", producer.writes[0].topic, "topics are written in event order")
	require.InDelta(t, beforeRecorded+2, testutil.ToFloat64(deliveredCounter.WithLabelValues("attendance_recorded")), 0.0001)
	require.InDelta(t, beforeChanged+1, testutil.ToFloat64(deliveredCounter.WithLabelValues("attendance_changed")), 0.0001)
}

func TestDispatcherUnknownSchemaMovesEventsToDLQ(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), "attendance.unknown")
	require.NotZero(t, eventID)

	producer := &stubProducer{}
	registry := &stubRegistry{id: 99}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Empty(t, producer.writes, "unknown schema should skip kafka writes")
	require.Empty(t, registry.calls, "schema registry should not be invoked when metadata missing")

	var dlqCount int
	var reason string
	err := pool.QueryRow(ctx, `SELECT COUNT(*), MAX(reason) FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&dlqCount, &reason)
	require.NoError(t, err)
	require.Equal(t, 1, dlqCount)
	require.True(t, strings.HasPrefix(reason, "unknown_event: no schema metadata for event_type=attendance.unknown"))

	var publishedAt *time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT published_at FROM outbox WHERE event_id = $1`, eventID).Scan(&publishedAt))
	require.NotNil(t, publishedAt, "event should still be marked as published")
}

func TestDLQManagerQuarantinesAfterRetryLimit(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeAttendanceChanged)
	dispatcher := NewDispatcher(pool, &stubProducer{err: errors.New("broker down")}, &stubRegistry{id: 3}, time.Millisecond, 5)
	require.NoError(t, dispatcher.processBatch(ctx))

	_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET retry_count = 2 WHERE event_id = $1`, eventID)
	require.NoError(t, err)

	manager := NewDLQManager(pool, 2, time.Second)
	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, requeued)

	var quarantineReason *string
	require.NoError(t, pool.QueryRow(ctx, `SELECT quarantine_reason FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&quarantineReason))
	require.NotNil(t, quarantineReason)
	require.Equal(t, "retry limit reached", *quarantineReason)

	requeued, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, requeued, "quarantined entries are not picked up again")
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, attendanceID, eventType string) int64 {
	t.Helper()

	topic := "attendance_recorded"
	if eventType == events.TypeAttendanceChanged {
		topic = "attendance_changed"
	}

	payloadBytes, err := json.Marshal(map[string]any{
		"attendance_id": attendanceID,
		"assistant_id":  "a1",
	})
	require.NoError(t, err)

	var eventID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         RETURNING event_id`,
		"attendance",
		attendanceID,
		eventType,
		topic,
		topic+"-value",
		"a1",
		payloadBytes,
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}
