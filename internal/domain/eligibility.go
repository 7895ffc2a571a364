package domain

import (
	"math"
	"time"
)

// Marking window around an occurrence start, in minutes.
const (
	WindowOpensBeforeMin = 30
	WindowClosesAfterMin = 45
)

// EligibilityEvaluator decides whether an occurrence may be marked now.
type EligibilityEvaluator struct {
	civil *CivilTime
}

// NewEligibilityEvaluator constructs an EligibilityEvaluator.
func NewEligibilityEvaluator(civil *CivilTime) *EligibilityEvaluator {
	return &EligibilityEvaluator{civil: civil}
}

// WithinWindow reports whether now lies in [start-30m, start+45m].
func (e *EligibilityEvaluator) WithinWindow(occ Occurrence, now time.Time) bool {
	diff := e.civil.MinutesBetween(now, occ.Start)
	return diff >= -WindowOpensBeforeMin && diff <= WindowClosesAfterMin
}

// CanMark reports whether a new mark is permitted for occ at now.
func (e *EligibilityEvaluator) CanMark(occ Occurrence, now time.Time, existing *AttendanceRecord) bool {
	return existing == nil && e.WithinWindow(occ, now)
}

// DelayMinutes returns the signed whole-minute delay of now against the occurrence
// start, rounding halves up.
func (e *EligibilityEvaluator) DelayMinutes(occ Occurrence, now time.Time) int {
	return int(math.Floor(e.civil.MinutesBetween(now, occ.Start) + 0.5))
}
