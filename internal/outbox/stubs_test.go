package outbox

import (
	"context"
	"slices"
	"sync"

	"github.com/segmentio/kafka-go"
)

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

// stubProducer records every batch it accepts. A non-nil err fails all writes.
type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

func (s *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: slices.Clone(msgs)})
	return nil
}

type schemaCall struct{ subject, schema string }

// stubRegistry hands out a fixed schema id, 1 when id is unset.
type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

func (s *stubRegistry) EnsureSchema(_ context.Context, subject, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, schemaCall{subject, schema})
	if s.err != nil {
		return 0, s.err
	}
	return max(s.id, 1), nil
}
