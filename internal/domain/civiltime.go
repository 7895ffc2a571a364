package domain

import (
	"fmt"
	"time"
)

// CivilDateLayout is the wire format of a civil date.
const CivilDateLayout = "2006-01-02"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// CivilTime projects instants onto the calendar of a single configured timezone.
// The zone is fixed at construction and shared by every component that needs
// day boundaries or weekdays.
type CivilTime struct {
	loc   *time.Location
	clock Clock
}

// NewCivilTime builds a CivilTime for loc. A nil clock falls back to the system clock.
func NewCivilTime(loc *time.Location, clock Clock) *CivilTime {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &CivilTime{loc: loc, clock: clock}
}

// LoadCivilTime resolves an IANA zone name such as "Africa/Cairo".
func LoadCivilTime(zone string, clock Clock) (*CivilTime, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load civil timezone %q: %w", zone, err)
	}
	return NewCivilTime(loc, clock), nil
}

// Location returns the configured zone.
func (c *CivilTime) Location() *time.Location { return c.loc }

// Now returns the current instant expressed in the civil zone.
func (c *CivilTime) Now() time.Time { return c.clock.Now().In(c.loc) }

// In expresses t in the civil zone.
func (c *CivilTime) In(t time.Time) time.Time { return t.In(c.loc) }

// DayStart returns 00:00:00.000 of t's civil date.
func (c *CivilTime) DayStart(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// DayBounds returns the half-open interval [start, end) covering t's civil date.
// end is the next civil midnight, so days spanning a DST transition are 23 or 25 hours long.
func (c *CivilTime) DayBounds(t time.Time) (time.Time, time.Time) {
	start := c.DayStart(t)
	return start, time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, c.loc)
}

// DayOfWeek returns 1 for Monday through 7 for Sunday.
func (c *CivilTime) DayOfWeek(t time.Time) int {
	wd := int(t.In(c.loc).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// MinutesBetween returns (a - b) in minutes, with fractional precision down to milliseconds.
func (c *CivilTime) MinutesBetween(a, b time.Time) float64 {
	return float64(a.Sub(b).Milliseconds()) / 60000
}

// CivilDate renders t's civil date as YYYY-MM-DD.
func (c *CivilTime) CivilDate(t time.Time) string {
	return t.In(c.loc).Format(CivilDateLayout)
}

// ParseCivilDate returns the start of the civil day named by value.
func (c *CivilTime) ParseCivilDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(CivilDateLayout, value, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrValidation, value)
	}
	return t, nil
}

// At returns the instant on t's civil date at hour:minute, seconds zeroed.
func (c *CivilTime) At(t time.Time, hour, minute int) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, c.loc)
}
