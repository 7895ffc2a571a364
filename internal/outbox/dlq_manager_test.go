package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewDLQManagerDefaults(t *testing.T) {
	manager := NewDLQManager(nil, 0, 0)
	require.Equal(t, 5, manager.maxRetries)
	require.Equal(t, time.Minute, manager.baseDelay)
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	manager := NewDLQManager(nil, 3, time.Minute)

	for attempt, want := range map[int]time.Duration{
		0:   time.Minute,
		1:   time.Minute,
		2:   2 * time.Minute,
		5:   16 * time.Minute,
		7:   time.Hour,
		100: time.Hour,
	} {
		require.Equal(t, want, manager.backoffDelay(attempt), "attempt %d", attempt)
	}
}
