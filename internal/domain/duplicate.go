package domain

import (
	"context"
	"fmt"
	"time"
)

// AttendanceLookup finds live (not soft-deleted) attendance records.
// Implementations return nil, nil when nothing matches.
type AttendanceLookup interface {
	FindSessionAttendance(ctx context.Context, assistantID, sessionID string) (*AttendanceRecord, error)
	FindSessionAttendanceBetween(ctx context.Context, assistantID, sessionID string, from, to time.Time) (*AttendanceRecord, error)
	FindCallSessionAttendance(ctx context.Context, assistantID, callSessionID string) (*AttendanceRecord, error)
}

// MarkTarget identifies what a mark is recorded against, tagged by source.
type MarkTarget struct {
	Source        AttendanceSource
	SessionID     string
	CallSessionID string
	Day           time.Time // any instant on the civil date of the mark
}

// OccurrenceTarget builds the mark target for a session occurrence.
func OccurrenceTarget(occ Occurrence) MarkTarget {
	return MarkTarget{Source: occ.Source, SessionID: occ.Definition.ID, Day: occ.Start}
}

// CallSessionTarget builds the mark target for a call session.
func CallSessionTarget(callSessionID string) MarkTarget {
	return MarkTarget{Source: SourceCallSession, CallSessionID: callSessionID}
}

// DuplicateGuard applies the per-source uniqueness policy:
// one-time sessions allow one record ever, weekly sessions one per civil day,
// call sessions one per assistant ever. Other activity is never a duplicate.
type DuplicateGuard struct {
	civil  *CivilTime
	lookup AttendanceLookup
}

// NewDuplicateGuard constructs a DuplicateGuard.
func NewDuplicateGuard(civil *CivilTime, lookup AttendanceLookup) *DuplicateGuard {
	return &DuplicateGuard{civil: civil, lookup: lookup}
}

// FindExisting returns the record that blocks a new mark, or nil.
func (g *DuplicateGuard) FindExisting(ctx context.Context, assistantID string, target MarkTarget) (*AttendanceRecord, error) {
	switch target.Source {
	case SourceOneTime:
		return g.lookup.FindSessionAttendance(ctx, assistantID, target.SessionID)
	case SourceWeekly:
		from, to := g.civil.DayBounds(target.Day)
		return g.lookup.FindSessionAttendanceBetween(ctx, assistantID, target.SessionID, from, to)
	case SourceCallSession:
		return g.lookup.FindCallSessionAttendance(ctx, assistantID, target.CallSessionID)
	case SourceOther:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown attendance source %q", ErrValidation, target.Source)
}
