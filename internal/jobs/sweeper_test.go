package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/attendance/internal/domain"
	"example.com/attendance/internal/persistence/memory"
)

type countingEnder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingEnder) EndExpiredCallSessions(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0, c.err
}

func (c *countingEnder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestSweeperRunsImmediatelyAndOnEachTick(t *testing.T) {
	ender := &countingEnder{}
	sweeper := NewCallSessionSweeper(ender, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go sweeper.Start(ctx)

	require.Eventually(t, func() bool { return ender.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	sweeper.Wait()
}

func TestSweeperKeepsRunningAfterErrors(t *testing.T) {
	ender := &countingEnder{err: errors.New("storage unavailable")}
	sweeper := NewCallSessionSweeper(ender, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go sweeper.Start(ctx)

	require.Eventually(t, func() bool { return ender.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	sweeper.Wait()
}

func TestSweeperCompletesExpiredCallSessions(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Cairo")
	require.NoError(t, err)
	now := time.Date(2025, time.January, 6, 11, 0, 0, 0, loc)
	civil := domain.NewCivilTime(loc, domain.ClockFunc(func() time.Time { return now }))
	store := memory.NewStore()
	service := domain.NewService(store, civil)

	start := now.Add(-2 * time.Hour)
	end := now.Add(-30 * time.Minute)
	call, err := service.CreateCallSession(context.Background(), "admin-1", domain.CallSessionInput{
		Title:     "Evening outreach",
		StartTime: &start,
		EndTime:   &end,
	})
	require.NoError(t, err)
	_, err = service.StartCallSession(context.Background(), "a1", call.ID)
	require.NoError(t, err)

	sweeper := NewCallSessionSweeper(service, time.Hour)
	sweeper.sweep(context.Background())

	got, err := service.GetCallSession(context.Background(), call.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CallSessionCompleted, got.Status)
	require.NotNil(t, got.EndTime)
}
