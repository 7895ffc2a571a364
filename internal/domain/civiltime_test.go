package domain

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

func cairoCivil(t *testing.T, now time.Time) *CivilTime {
	t.Helper()
	civil, err := LoadCivilTime("Africa/Cairo", ClockFunc(func() time.Time { return now }))
	require.NoError(t, err)
	return civil
}

func cairo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Cairo")
	require.NoError(t, err)
	return loc
}

func TestCivilTimeDayOfWeekMapsSundayToSeven(t *testing.T) {
	civil := cairoCivil(t, time.Time{})
	loc := cairo(t)

	// 2025-01-06 is a Monday.
	for i, want := range []int{1, 2, 3, 4, 5, 6, 7} {
		day := time.Date(2025, time.January, 6+i, 9, 0, 0, 0, loc)
		require.Equal(t, want, civil.DayOfWeek(day), day.Weekday().String())
	}
}

func TestCivilTimeUsesCivilDateNotUTCDate(t *testing.T) {
	civil := cairoCivil(t, time.Time{})

	// 23:30 UTC on Sunday is already 01:30 Monday in Cairo (UTC+2 in winter).
	instant := time.Date(2025, time.January, 5, 23, 30, 0, 0, time.UTC)
	require.Equal(t, 1, civil.DayOfWeek(instant))
	require.Equal(t, "2025-01-06", civil.CivilDate(instant))

	start, end := civil.DayBounds(instant)
	require.Equal(t, time.Date(2025, time.January, 5, 22, 0, 0, 0, time.UTC), start.UTC())
	require.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestCivilTimeDayBoundsFollowDaylightSaving(t *testing.T) {
	civil := cairoCivil(t, time.Time{})
	loc := cairo(t)

	// Egypt moved clocks forward at 00:00 on 2024-04-26.
	start, end := civil.DayBounds(time.Date(2024, time.April, 26, 12, 0, 0, 0, loc))
	require.Equal(t, 23*time.Hour, end.Sub(start))
	require.Equal(t, "2024-04-27", civil.CivilDate(end))
}

func TestCivilTimeMinutesBetweenKeepsFractions(t *testing.T) {
	civil := cairoCivil(t, time.Time{})
	base := time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)

	require.InDelta(t, 5.5, civil.MinutesBetween(base.Add(5*time.Minute+30*time.Second), base), 1e-9)
	require.InDelta(t, -30, civil.MinutesBetween(base.Add(-30*time.Minute), base), 1e-9)
}

func TestCivilTimeNowIsExpressedInZone(t *testing.T) {
	instant := time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)
	civil := cairoCivil(t, instant)

	now := civil.Now()
	require.True(t, now.Equal(instant))
	require.Equal(t, 10, now.Hour())
}

func TestLoadCivilTimeRejectsUnknownZone(t *testing.T) {
	_, err := LoadCivilTime("Mars/Olympus", nil)
	require.Error(t, err)
}

func TestParseCivilDate(t *testing.T) {
	civil := cairoCivil(t, time.Time{})

	day, err := civil.ParseCivilDate("2025-01-06")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.January, 5, 22, 0, 0, 0, time.UTC), day.UTC())

	_, err = civil.ParseCivilDate("06/01/2025")
	require.ErrorIs(t, err, ErrValidation)
}
