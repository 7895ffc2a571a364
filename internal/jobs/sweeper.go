// Package jobs runs the attendance service's periodic background work.
package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"example.com/attendance/internal/observability"
)

// CallSessionEnder completes active call sessions whose end time has passed.
type CallSessionEnder interface {
	EndExpiredCallSessions(ctx context.Context) (int, error)
}

// CallSessionSweeper periodically completes expired call sessions.
type CallSessionSweeper struct {
	ender    CallSessionEnder
	interval time.Duration

	shutdownComplete chan struct{}
}

// NewCallSessionSweeper builds a sweeper ticking every interval.
func NewCallSessionSweeper(ender CallSessionEnder, interval time.Duration) *CallSessionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CallSessionSweeper{
		ender:            ender,
		interval:         interval,
		shutdownComplete: make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled. It should be called in a goroutine.
func (s *CallSessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.shutdownComplete)
	}()

	for {
		s.sweep(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (s *CallSessionSweeper) Wait() {
	<-s.shutdownComplete
}

func (s *CallSessionSweeper) sweep(ctx context.Context) {
	ended, err := s.ender.EndExpiredCallSessions(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("call session sweep failed: %v", err)
		}
		return
	}
	if ended > 0 {
		log.Printf("call session sweep: completed %d expired call sessions", ended)
	}
	observability.RecordCallSessionsEnded(ended)
}
