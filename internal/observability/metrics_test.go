package observability

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/attendance/internal/domain"
)

func TestMarkOutcomeLabels(t *testing.T) {
	cases := map[string]error{
		"recorded":      nil,
		"not_found":     fmt.Errorf("%w: session", domain.ErrNotFound),
		"out_of_range":  domain.ErrOutOfRange,
		"duplicate":     fmt.Errorf("%w: again", domain.ErrDuplicate),
		"window_closed": domain.ErrWindowClosed,
		"invalid":       domain.ErrValidation,
		"error":         errors.New("boom"),
	}
	for want, err := range cases {
		require.Equal(t, want, MarkOutcome(err))
	}
}

func TestRecordMarkOutcomeIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(markOutcomeCounter.WithLabelValues("duplicate"))
	RecordMarkOutcome(domain.ErrDuplicate)
	require.Equal(t, before+1, testutil.ToFloat64(markOutcomeCounter.WithLabelValues("duplicate")))
}

func TestRecordCallSessionsEndedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(callSessionsEndedCounter)
	RecordCallSessionsEnded(0)
	RecordCallSessionsEnded(2)
	require.Equal(t, before+2, testutil.ToFloat64(callSessionsEndedCounter))
}
