package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func weeklyDef(t *testing.T, id string, day, hour, minute int) SessionDefinition {
	t.Helper()
	return SessionDefinition{
		ID:         id,
		CenterID:   "center-1",
		Subject:    "Math " + id,
		StartTime:  time.Date(2024, time.December, 2, hour, minute, 0, 0, cairo(t)),
		Recurrence: RecurrenceWeekly,
		DayOfWeek:  intPtr(day),
		IsActive:   true,
	}
}

func TestWeeklyDefinitionOccursOnlyOnMatchingWeekday(t *testing.T) {
	civil := cairoCivil(t, time.Time{})
	resolver := NewScheduleResolver(civil)
	loc := cairo(t)

	for day := 1; day <= 7; day++ {
		def := weeklyDef(t, "weekly", day, 10, 0)
		for offset := 0; offset < 21; offset++ {
			target := time.Date(2025, time.January, 6+offset, 15, 0, 0, 0, loc)
			occs := resolver.OccurrencesOn([]SessionDefinition{def}, target, "assistant-1")
			if civil.DayOfWeek(target) == day {
				require.Len(t, occs, 1, "day=%d target=%s", day, target)
				require.Equal(t, SourceWeekly, occs[0].Source)
			} else {
				require.Empty(t, occs, "day=%d target=%s", day, target)
			}
		}
	}
}

func TestWeeklyOccurrenceTakesTimeOfDayFromDefinition(t *testing.T) {
	civil := cairoCivil(t, time.Time{})
	resolver := NewScheduleResolver(civil)
	loc := cairo(t)

	def := weeklyDef(t, "weekly", 1, 10, 15)
	def.StartTime = def.StartTime.Add(42 * time.Second)

	occ, ok := resolver.OccurrenceOn(def, time.Date(2025, time.January, 13, 7, 0, 0, 0, loc))
	require.True(t, ok)
	require.True(t, time.Date(2025, time.January, 13, 10, 15, 0, 0, loc).Equal(occ.Start))
	require.True(t, occ.Start.Add(2*time.Hour).Equal(occ.End))
	require.Equal(t, "2025-01-13", occ.Date)
}

func TestWeeklyOccurrenceMayCrossMidnight(t *testing.T) {
	civil := cairoCivil(t, time.Time{})
	resolver := NewScheduleResolver(civil)
	loc := cairo(t)

	def := weeklyDef(t, "late", 1, 23, 0)
	occ, ok := resolver.OccurrenceOn(def, time.Date(2025, time.January, 6, 12, 0, 0, 0, loc))
	require.True(t, ok)
	require.True(t, time.Date(2025, time.January, 7, 1, 0, 0, 0, loc).Equal(occ.End))
}

func TestInactiveWeeklyDefinitionHasNoOccurrences(t *testing.T) {
	resolver := NewScheduleResolver(cairoCivil(t, time.Time{}))
	def := weeklyDef(t, "weekly", 1, 10, 0)
	def.IsActive = false

	occs := resolver.OccurrencesOn([]SessionDefinition{def}, time.Date(2025, time.January, 6, 9, 0, 0, 0, cairo(t)), "a")
	require.Empty(t, occs)
}

func TestOneTimeDefinitionOccursOnlyOnItsCivilDate(t *testing.T) {
	civil := cairoCivil(t, time.Time{})
	resolver := NewScheduleResolver(civil)
	loc := cairo(t)

	start := time.Date(2025, time.January, 8, 0, 30, 0, 0, loc)
	def := SessionDefinition{ID: "once", CenterID: "c", Subject: "Intro", StartTime: start, Recurrence: RecurrenceOneTime}

	for offset := -3; offset <= 3; offset++ {
		target := time.Date(2025, time.January, 8+offset, 23, 59, 0, 0, loc)
		occs := resolver.OccurrencesOn([]SessionDefinition{def}, target, "a")
		if offset == 0 {
			require.Len(t, occs, 1)
			require.True(t, occs[0].Start.Equal(start))
			require.Equal(t, SourceOneTime, occs[0].Source)
		} else {
			require.Empty(t, occs, "offset=%d", offset)
		}
	}
}

func TestOccurrencesFilterByAssistantAndSortByStart(t *testing.T) {
	resolver := NewScheduleResolver(cairoCivil(t, time.Time{}))
	loc := cairo(t)

	late := weeklyDef(t, "late", 1, 16, 0)
	early := weeklyDef(t, "early", 1, 8, 30)
	early.AssistantID = strPtr("assistant-1")
	foreign := weeklyDef(t, "foreign", 1, 12, 0)
	foreign.AssistantID = strPtr("assistant-2")

	occs := resolver.OccurrencesOn([]SessionDefinition{late, foreign, early}, time.Date(2025, time.January, 6, 7, 0, 0, 0, loc), "assistant-1")
	require.Len(t, occs, 2)
	require.Equal(t, "early", occs[0].Definition.ID)
	require.Equal(t, "late", occs[1].Definition.ID)
}

func TestNextOccurrence(t *testing.T) {
	resolver := NewScheduleResolver(cairoCivil(t, time.Time{}))
	loc := cairo(t)

	def := weeklyDef(t, "thursday", 4, 18, 0)
	next, ok := resolver.NextOccurrence(def, time.Date(2025, time.January, 6, 9, 0, 0, 0, loc))
	require.True(t, ok)
	require.Equal(t, "2025-01-09", next.Date)

	once := SessionDefinition{ID: "once", StartTime: time.Date(2025, time.January, 2, 9, 0, 0, 0, loc), Recurrence: RecurrenceOneTime}
	_, ok = resolver.NextOccurrence(once, time.Date(2025, time.January, 6, 9, 0, 0, 0, loc))
	require.False(t, ok)
	require.Equal(t, "2025-01-02", resolver.Project(once, time.Date(2025, time.January, 6, 9, 0, 0, 0, loc)).Date)
}

func TestSessionDefinitionValidate(t *testing.T) {
	def := weeklyDef(t, "weekly", 1, 10, 0)
	require.NoError(t, def.Validate())

	def.DayOfWeek = nil
	require.ErrorIs(t, def.Validate(), ErrValidation)
	def.DayOfWeek = intPtr(8)
	require.ErrorIs(t, def.Validate(), ErrValidation)

	once := SessionDefinition{CenterID: "c", Subject: "Intro", StartTime: time.Now(), Recurrence: RecurrenceOneTime, DayOfWeek: intPtr(99)}
	require.NoError(t, once.Validate())

	once.Recurrence = "daily"
	require.ErrorIs(t, once.Validate(), ErrValidation)
}
