package domain

import (
	"sort"
	"time"
)

// SessionDuration is the fixed length of every occurrence.
const SessionDuration = 2 * time.Hour

// Occurrence is a session definition projected onto one civil date.
type Occurrence struct {
	Definition SessionDefinition
	Source     AttendanceSource
	Date       string // civil date, YYYY-MM-DD
	Start      time.Time
	End        time.Time
}

// ScheduleResolver turns session definitions into dated occurrences.
type ScheduleResolver struct {
	civil *CivilTime
}

// NewScheduleResolver constructs a ScheduleResolver.
func NewScheduleResolver(civil *CivilTime) *ScheduleResolver {
	return &ScheduleResolver{civil: civil}
}

// OccurrencesOn returns the occurrences due on target's civil date for the assistant,
// ordered by start instant.
func (r *ScheduleResolver) OccurrencesOn(defs []SessionDefinition, target time.Time, assistantID string) []Occurrence {
	out := make([]Occurrence, 0, len(defs))
	for _, def := range defs {
		if !def.VisibleTo(assistantID) {
			continue
		}
		if occ, ok := r.OccurrenceOn(def, target); ok {
			out = append(out, occ)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// OccurrenceOn projects a single definition onto target's civil date.
// It ignores assistant visibility.
func (r *ScheduleResolver) OccurrenceOn(def SessionDefinition, target time.Time) (Occurrence, bool) {
	dayStart, dayEnd := r.civil.DayBounds(target)

	switch def.Recurrence {
	case RecurrenceOneTime:
		if def.StartTime.Before(dayStart) || !def.StartTime.Before(dayEnd) {
			return Occurrence{}, false
		}
		return r.occurrence(def, dayStart, def.StartTime), true
	case RecurrenceWeekly:
		if !def.IsActive || def.DayOfWeek == nil || r.civil.DayOfWeek(dayStart) != *def.DayOfWeek {
			return Occurrence{}, false
		}
		return r.occurrence(def, dayStart, r.weeklyStart(def, dayStart)), true
	}
	return Occurrence{}, false
}

// NextOccurrence returns the first occurrence on or after from's civil date.
func (r *ScheduleResolver) NextOccurrence(def SessionDefinition, from time.Time) (Occurrence, bool) {
	dayStart := r.civil.DayStart(from)
	switch def.Recurrence {
	case RecurrenceOneTime:
		if def.StartTime.Before(dayStart) {
			return Occurrence{}, false
		}
		return r.OccurrenceOn(def, def.StartTime)
	case RecurrenceWeekly:
		for i := 0; i < 7; i++ {
			day := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day()+i, 12, 0, 0, 0, r.civil.Location())
			if occ, ok := r.OccurrenceOn(def, day); ok {
				return occ, true
			}
		}
	}
	return Occurrence{}, false
}

// Project places def on day regardless of recurrence or active flag, keeping the
// definition's civil time of day. Used for display when no real occurrence exists.
func (r *ScheduleResolver) Project(def SessionDefinition, day time.Time) Occurrence {
	dayStart := r.civil.DayStart(day)
	if def.Recurrence == RecurrenceOneTime {
		return r.occurrence(def, r.civil.DayStart(def.StartTime), def.StartTime)
	}
	return r.occurrence(def, dayStart, r.weeklyStart(def, dayStart))
}

func (r *ScheduleResolver) weeklyStart(def SessionDefinition, dayStart time.Time) time.Time {
	base := r.civil.In(def.StartTime)
	return r.civil.At(dayStart, base.Hour(), base.Minute())
}

func (r *ScheduleResolver) occurrence(def SessionDefinition, dayStart, start time.Time) Occurrence {
	return Occurrence{
		Definition: def,
		Source:     def.Source(),
		Date:       r.civil.CivilDate(dayStart),
		Start:      start,
		End:        start.Add(SessionDuration),
	}
}
