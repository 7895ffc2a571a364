package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/attendance/pkg/events"
)

func headerMap(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestDeliverFramesPayloadAndSetsHeaders(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(nil, producer, registry, time.Second, 10)

	payload, err := json.Marshal(events.AttendanceRecorded{AttendanceID: "rec-1", AssistantID: "a1"})
	require.NoError(t, err)

	err = dispatcher.deliver(context.Background(), []Message{{
		EventID:       1,
		AggregateType: "attendance",
		AggregateID:   "rec-1",
		EventType:     events.TypeAttendanceRecorded,
		Topic:         "attendance_recorded",
		SchemaSubject: "attendance_recorded-value",
		PartitionKey:  "a1",
		Payload:       payload,
	}})
	require.NoError(t, err)

	require.Len(t, producer.writes, 1)
	require.Equal(t, "attendance_recorded", producer.writes[0].topic)
	msg := producer.writes[0].messages[0]
	require.Equal(t, "a1", string(msg.Key))
	require.Equal(t, byte(0), msg.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(msg.Value[1:5]))
	require.JSONEq(t, string(payload), string(msg.Value[5:]))

	headers := headerMap(msg)
	require.Equal(t, events.TypeAttendanceRecorded, headers["event_type"])
	require.Equal(t, "attendance_recorded-value", headers["schema_subject"])
	require.Equal(t, "rec-1", headers["aggregate_id"])
}

func TestDeliverCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 7}
	dispatcher := NewDispatcher(nil, producer, registry, time.Second, 10)

	msgs := []Message{
		{EventID: 1, EventType: events.TypeAttendanceChanged, Topic: "attendance_changed", SchemaSubject: "attendance_changed-value", Payload: json.RawMessage(`{}`)},
		{EventID: 2, EventType: events.TypeAttendanceChanged, Topic: "attendance_changed", SchemaSubject: "attendance_changed-value", Payload: json.RawMessage(`{}`)},
	}
	require.NoError(t, dispatcher.deliver(context.Background(), msgs))
	require.NoError(t, dispatcher.deliver(context.Background(), msgs))

	require.Len(t, registry.calls, 1)
	require.Len(t, producer.writes, 2)
	require.Len(t, producer.writes[0].messages, 2)
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	dispatcher := NewDispatcher(nil, &stubProducer{}, &stubRegistry{}, time.Second, 10)

	err := dispatcher.deliver(context.Background(), []Message{{EventType: "attendance.unknown", Topic: "attendance_recorded"}})
	require.ErrorContains(t, err, "no schema metadata for event_type=attendance.unknown")
	require.Equal(t, FailureUnknownEvent, classifyFailure(err))
}

func TestDeliverClassifiesFailures(t *testing.T) {
	msg := Message{EventID: 3, EventType: events.TypeAttendanceRecorded, Topic: "attendance_recorded", SchemaSubject: "attendance_recorded-value", Payload: json.RawMessage(`{}`)}

	t.Run("registry", func(t *testing.T) {
		producer := &stubProducer{}
		dispatcher := NewDispatcher(nil, producer, &stubRegistry{err: errors.New("registry down")}, time.Second, 10)

		err := dispatcher.deliver(context.Background(), []Message{msg})
		require.Equal(t, FailureSchema, classifyFailure(err))
		require.Empty(t, producer.writes)
	})

	t.Run("kafka", func(t *testing.T) {
		dispatcher := NewDispatcher(nil, &stubProducer{err: errors.New("broker down")}, &stubRegistry{id: 5}, time.Second, 10)

		err := dispatcher.deliver(context.Background(), []Message{msg})
		require.Equal(t, FailureKafka, classifyFailure(err))
		require.Equal(t, "kafka_write: broker down (topic=attendance_recorded)", dlqReason(classifyFailure(err), err, msg.Topic))
	})

	t.Run("unclassified", func(t *testing.T) {
		require.Equal(t, FailureOther, classifyFailure(errors.New("plain")))
	})
}

func TestDeliverSendsEventIDHeader(t *testing.T) {
	producer := &stubProducer{}
	dispatcher := NewDispatcher(nil, producer, &stubRegistry{id: 1}, time.Second, 10)

	err := dispatcher.deliver(context.Background(), []Message{{
		EventID:       77,
		EventType:     events.TypeAttendanceChanged,
		Topic:         "attendance_changed",
		SchemaSubject: "attendance_changed-value",
		Payload:       json.RawMessage(`{}`),
	}})
	require.NoError(t, err)
	require.Equal(t, "77", headerMap(producer.writes[0].messages[0])["event_id"])
}
