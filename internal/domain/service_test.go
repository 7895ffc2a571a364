package domain_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"example.com/attendance/internal/domain"
	"example.com/attendance/internal/persistence/memory"
)

var centerLocation = domain.Coordinate{Latitude: 30.0444, Longitude: 31.2357}

type fixture struct {
	t       *testing.T
	mu      sync.Mutex
	now     time.Time
	loc     *time.Location
	store   *memory.Store
	service *domain.Service
	center  *domain.Center
}

func newFixture(t *testing.T, opts ...domain.Option) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Cairo")
	require.NoError(t, err)

	f := &fixture{t: t, loc: loc, store: memory.NewStore()}
	f.now = time.Date(2025, time.January, 6, 9, 0, 0, 0, loc)
	civil := domain.NewCivilTime(loc, domain.ClockFunc(f.clock))
	if len(opts) == 0 {
		opts = []domain.Option{domain.WithAuditSink(f.store)}
	}
	f.service = domain.NewService(f.store, civil, opts...)

	radius := 30.0
	f.center, err = f.service.CreateCenter(context.Background(), "admin", domain.CenterInput{
		Name:      "Downtown",
		Latitude:  centerLocation.Latitude,
		Longitude: centerLocation.Longitude,
		RadiusM:   &radius,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) setNow(year int, month time.Month, day, hour, minute int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = time.Date(year, month, day, hour, minute, 0, 0, f.loc)
}

func (f *fixture) weekly(assistantID string, day, hour, minute int) *domain.SessionDefinition {
	f.t.Helper()
	def, err := f.service.CreateSession(context.Background(), "admin", domain.SessionInput{
		CenterID:    f.center.ID,
		AssistantID: &assistantID,
		Subject:     "Physics",
		StartTime:   time.Date(2024, time.December, 2, hour, minute, 0, 0, f.loc),
		Recurrence:  domain.RecurrenceWeekly,
		DayOfWeek:   &day,
	})
	require.NoError(f.t, err)
	return def
}

func (f *fixture) oneTime(assistantID string, start time.Time) *domain.SessionDefinition {
	f.t.Helper()
	def, err := f.service.CreateSession(context.Background(), "admin", domain.SessionInput{
		CenterID:    f.center.ID,
		AssistantID: &assistantID,
		Subject:     "Revision",
		StartTime:   start,
		Recurrence:  domain.RecurrenceOneTime,
	})
	require.NoError(f.t, err)
	return def
}

func (f *fixture) mark(assistantID, sessionID string) (*domain.AttendanceRecord, error) {
	location := centerLocation
	return f.service.MarkAttendance(context.Background(), domain.MarkInput{
		AssistantID: assistantID,
		SessionID:   sessionID,
		Location:    &location,
	})
}

func TestWeeklySessionMarkingInCairo(t *testing.T) {
	f := newFixture(t)
	def := f.weekly("a1", 1, 10, 0)

	f.setNow(2025, time.January, 6, 10, 5)
	record, err := f.mark("a1", def.ID)
	require.NoError(t, err)
	require.Equal(t, 5, record.DelayMinutes)
	require.Equal(t, domain.SourceWeekly, record.Source)
	require.Equal(t, "2025-01-06", record.CivilDay)
	require.Equal(t, "Physics", record.SessionSubject)

	f.setNow(2025, time.January, 6, 10, 30)
	_, err = f.mark("a1", def.ID)
	require.ErrorIs(t, err, domain.ErrDuplicate)

	f.setNow(2025, time.January, 13, 8, 0)
	_, err = f.mark("a1", def.ID)
	require.ErrorIs(t, err, domain.ErrWindowClosed)

	f.setNow(2025, time.January, 13, 9, 40)
	record, err = f.mark("a1", def.ID)
	require.NoError(t, err)
	require.Equal(t, 0, record.DelayMinutes)
	require.Equal(t, "2025-01-13", record.CivilDay)
}

func TestWeeklySessionNotScheduledTodayIsNotFound(t *testing.T) {
	f := newFixture(t)
	def := f.weekly("a1", 2, 10, 0)

	f.setNow(2025, time.January, 6, 10, 0)
	_, err := f.mark("a1", def.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOneTimeSessionAllowsASingleRecordEver(t *testing.T) {
	f := newFixture(t)
	def := f.oneTime("a1", time.Date(2025, time.January, 8, 18, 0, 0, 0, f.loc))

	f.setNow(2025, time.January, 8, 17, 45)
	record, err := f.mark("a1", def.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SourceOneTime, record.Source)
	require.Equal(t, 0, record.DelayMinutes)

	f.setNow(2025, time.January, 8, 18, 10)
	_, err = f.mark("a1", def.ID)
	require.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestMarkOutsideGeofenceIsRejected(t *testing.T) {
	f := newFixture(t)
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 10, 0)

	far := domain.Coordinate{Latitude: 30.0500, Longitude: 31.2357}
	_, err := f.service.MarkAttendance(context.Background(), domain.MarkInput{
		AssistantID: "a1",
		SessionID:   def.ID,
		Location:    &far,
	})
	require.ErrorIs(t, err, domain.ErrOutOfRange)
}

func TestGeofenceIsCheckedBeforeTheWindow(t *testing.T) {
	f := newFixture(t)
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 7, 0)

	far := domain.Coordinate{Latitude: 30.0500, Longitude: 31.2357}
	_, err := f.service.MarkAttendance(context.Background(), domain.MarkInput{
		AssistantID: "a1",
		SessionID:   def.ID,
		Location:    &far,
	})
	require.ErrorIs(t, err, domain.ErrOutOfRange)
}

func TestSessionOfAnotherAssistantIsNotFound(t *testing.T) {
	f := newFixture(t)
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 10, 0)

	_, err := f.mark("a2", def.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.service.SessionForAssistant(context.Background(), "a2", def.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionMarkRequiresLocation(t *testing.T) {
	f := newFixture(t)
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 10, 0)

	_, err := f.service.MarkAttendance(context.Background(), domain.MarkInput{AssistantID: "a1", SessionID: def.ID})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.service.MarkAttendance(context.Background(), domain.MarkInput{AssistantID: "a1"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCallSessionAllowsOneMarkPerAssistant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	call, err := f.service.CreateCallSession(ctx, "admin", domain.CallSessionInput{Title: "Parents call"})
	require.NoError(t, err)

	f.setNow(2025, time.January, 6, 22, 0)
	record, err := f.service.MarkAttendance(ctx, domain.MarkInput{AssistantID: "a1", CallSessionID: call.ID})
	require.NoError(t, err)
	require.Equal(t, domain.SourceCallSession, record.Source)
	require.Equal(t, 0, record.DelayMinutes)
	require.Equal(t, "Parents call", record.SessionSubject)

	f.setNow(2025, time.January, 9, 12, 0)
	_, err = f.service.MarkAttendance(ctx, domain.MarkInput{AssistantID: "a1", CallSessionID: call.ID})
	require.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = f.service.MarkAttendance(ctx, domain.MarkInput{AssistantID: "a2", CallSessionID: call.ID})
	require.NoError(t, err)

	_, err = f.service.MarkAttendance(ctx, domain.MarkInput{AssistantID: "a1", CallSessionID: "missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentMarksProduceExactlyOneRecord(t *testing.T) {
	f := newFixture(t)
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 10, 0)

	const attempts = 16
	var successes, duplicates atomic.Int32
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.mark("a1", def.ID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrDuplicate):
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), successes.Load())
	require.Equal(t, int32(attempts-1), duplicates.Load())
}

func TestRecordKeepsSubjectAfterSessionDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 10, 0)

	record, err := f.mark("a1", def.ID)
	require.NoError(t, err)

	_, err = f.service.DeleteSession(ctx, "admin", def.ID, "term ended")
	require.NoError(t, err)

	stored, err := f.service.GetAttendance(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, "Physics", stored.SessionSubject)
	require.Equal(t, def.ID, *stored.SessionID)
}

func TestSoftDeletedRecordDoesNotBlockNewMark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 10, 0)

	first, err := f.mark("a1", def.ID)
	require.NoError(t, err)

	backup, err := f.service.DeleteAttendance(ctx, "admin", first.ID, "wrong assistant")
	require.NoError(t, err)
	require.Equal(t, domain.BackupAttendance, backup.ItemType)

	_, err = f.service.DeleteAttendance(ctx, "admin", first.ID, "again")
	require.ErrorIs(t, err, domain.ErrNotFound)

	second, err := f.mark("a1", def.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	// Restoring the first record would now violate uniqueness; the backup stays restorable.
	_, err = f.service.RestoreBackup(ctx, "admin", backup.ID)
	require.ErrorIs(t, err, domain.ErrDuplicate)
	backups, err := f.service.ListBackups(ctx, domain.BackupAttendance, 10)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	require.True(t, backups[0].CanRestore)
}

func TestRestoreBackupIsOneShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 10, 0)

	record, err := f.mark("a1", def.ID)
	require.NoError(t, err)
	backup, err := f.service.DeleteAttendance(ctx, "admin", record.ID, "")
	require.NoError(t, err)

	restored, err := f.service.RestoreBackup(ctx, "admin", backup.ID)
	require.NoError(t, err)
	require.False(t, restored.CanRestore)
	require.NotNil(t, restored.RestoredAt)

	live, err := f.service.GetAttendance(ctx, record.ID)
	require.NoError(t, err)
	require.False(t, live.IsDeleted)

	_, err = f.service.RestoreBackup(ctx, "admin", backup.ID)
	require.ErrorIs(t, err, domain.ErrBackupConsumed)

	_, err = f.service.RestoreBackup(ctx, "admin", "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestoreDeletedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.weekly("a1", 1, 10, 0)

	backup, err := f.service.DeleteSession(ctx, "admin", def.ID, "")
	require.NoError(t, err)
	_, err = f.service.GetSession(ctx, def.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.service.RestoreBackup(ctx, "admin", backup.ID)
	require.NoError(t, err)

	restored, err := f.service.GetSession(ctx, def.ID)
	require.NoError(t, err)
	require.Equal(t, def.Subject, restored.Subject)
	require.Equal(t, 1, *restored.DayOfWeek)
}

func TestDeleteCenterInUseIsRejected(t *testing.T) {
	f := newFixture(t)
	f.weekly("a1", 1, 10, 0)

	_, err := f.service.DeleteCenter(context.Background(), "admin", f.center.ID, "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestManualAttendanceAcceptsNegativeDelay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 15, 0)

	early := -20
	record, err := f.service.RecordAttendanceManually(ctx, "admin", domain.ManualAttendanceInput{
		AssistantID:  "a1",
		SessionID:    def.ID,
		TimeRecorded: time.Date(2025, time.January, 6, 9, 40, 0, 0, f.loc),
		DelayMinutes: &early,
	})
	require.NoError(t, err)
	require.Equal(t, -20, record.DelayMinutes)
	require.Equal(t, centerLocation, *record.Location)
	require.Equal(t, "Early by 20 minutes", domain.DelayLabel(record.DelayMinutes))

	_, err = f.mark("a1", def.ID)
	require.ErrorIs(t, err, domain.ErrDuplicate)

	late := 12
	notes := "traffic"
	updated, err := f.service.UpdateAttendance(ctx, "admin", record.ID, domain.AttendanceUpdate{DelayMinutes: &late, Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, 12, updated.DelayMinutes)
	require.Equal(t, "traffic", updated.Notes)
}

func TestManualAttendanceDerivesDelayFromOccurrence(t *testing.T) {
	f := newFixture(t)
	def := f.weekly("a1", 1, 10, 0)

	record, err := f.service.RecordAttendanceManually(context.Background(), "admin", domain.ManualAttendanceInput{
		AssistantID:  "a1",
		SessionID:    def.ID,
		TimeRecorded: time.Date(2025, time.January, 6, 11, 30, 0, 0, f.loc),
	})
	require.NoError(t, err)
	require.Equal(t, 90, record.DelayMinutes)
}

func TestManualOtherActivityRequiresSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RecordAttendanceManually(ctx, "admin", domain.ManualAttendanceInput{AssistantID: "a1"})
	require.ErrorIs(t, err, domain.ErrValidation)

	for range 2 {
		record, err := f.service.RecordAttendanceManually(ctx, "admin", domain.ManualAttendanceInput{
			AssistantID: "a1",
			Subject:     "Exam invigilation",
		})
		require.NoError(t, err)
		require.Equal(t, domain.SourceOther, record.Source)
	}
}

func TestTodaySessionsOrderedWithMarkingState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	late := f.weekly("a1", 1, 16, 0)
	early := f.weekly("a1", 1, 10, 0)
	f.weekly("a1", 2, 9, 0)
	f.weekly("a2", 1, 11, 0)

	f.setNow(2025, time.January, 6, 10, 0)
	_, err := f.mark("a1", early.ID)
	require.NoError(t, err)

	f.setNow(2025, time.January, 6, 15, 40)
	today, err := f.service.TodaySessions(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, today, 2)

	require.Equal(t, early.ID, today[0].Occurrence.Definition.ID)
	require.NotNil(t, today[0].Attendance)
	require.False(t, today[0].CanMark)
	require.Equal(t, "Downtown", today[0].Center.Name)

	require.Equal(t, late.ID, today[1].Occurrence.Definition.ID)
	require.Nil(t, today[1].Attendance)
	require.True(t, today[1].CanMark)
}

func TestSessionForAssistantFallsBackToNextOccurrence(t *testing.T) {
	f := newFixture(t)
	def := f.weekly("a1", 3, 10, 0)
	f.setNow(2025, time.January, 6, 10, 0)

	detail, err := f.service.SessionForAssistant(context.Background(), "a1", def.ID)
	require.NoError(t, err)
	require.False(t, detail.DueToday)
	require.False(t, detail.CanMark)
	require.Equal(t, "2025-01-08", detail.Occurrence.Date)
}

func TestCallSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setNow(2025, time.January, 6, 20, 0)

	end := time.Date(2025, time.January, 6, 21, 0, 0, 0, f.loc)
	call, err := f.service.CreateCallSession(ctx, "admin", domain.CallSessionInput{Title: "Follow-up", EndTime: &end})
	require.NoError(t, err)
	require.Equal(t, domain.CallSessionPending, call.Status)

	_, err = f.service.StopCallSession(ctx, "a1", call.ID)
	require.ErrorIs(t, err, domain.ErrValidation)

	started, err := f.service.StartCallSession(ctx, "a1", call.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CallSessionActive, started.Status)
	require.Equal(t, "a1", *started.StartedBy)

	ended, err := f.service.EndExpiredCallSessions(ctx)
	require.NoError(t, err)
	require.Zero(t, ended)

	f.setNow(2025, time.January, 6, 21, 5)
	ended, err = f.service.EndExpiredCallSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, ended)

	current, err := f.service.GetCallSession(ctx, call.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CallSessionCompleted, current.Status)

	entries, err := f.service.ListAuditEntries(ctx, domain.SystemActor, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.AuditCallSessionAutoEnd, entries[0].Action)
}

func TestCallSessionStartedEarlyStopsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := time.Date(2025, time.January, 7, 10, 0, 0, 0, f.loc)
	end := time.Date(2025, time.January, 7, 11, 0, 0, 0, f.loc)
	call, err := f.service.CreateCallSession(ctx, "admin", domain.CallSessionInput{Title: "Tomorrow", StartTime: &start, EndTime: &end})
	require.NoError(t, err)

	started, err := f.service.StartCallSession(ctx, "a1", call.ID)
	require.NoError(t, err)
	require.True(t, started.StartTime.Equal(f.clock()), "early start replaces the scheduled start")
	require.True(t, started.EndTime.Equal(end))

	f.setNow(2025, time.January, 6, 9, 30)
	stopped, err := f.service.StopCallSession(ctx, "a1", call.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CallSessionCompleted, stopped.Status)
	require.False(t, stopped.EndTime.Before(*stopped.StartTime))
	require.NoError(t, stopped.Validate())

	current, err := f.service.GetCallSession(ctx, call.ID)
	require.NoError(t, err)
	require.NoError(t, current.Validate())
	require.True(t, current.EndTime.Equal(f.clock()))
}

func TestStoreRejectsCallSessionEndingBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	call, err := f.service.CreateCallSession(ctx, "admin", domain.CallSessionInput{Title: "Outreach"})
	require.NoError(t, err)

	start := f.clock().Add(time.Hour)
	end := f.clock()
	call.StartTime, call.EndTime = &start, &end
	require.ErrorIs(t, f.store.UpdateCallSession(ctx, *call), domain.ErrValidation)

	call.ID = "fresh"
	require.ErrorIs(t, f.store.CreateCallSession(ctx, *call), domain.ErrValidation)
}

func TestStopCallSessionClosesOpenActivityLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	call, err := f.service.CreateCallSession(ctx, "admin", domain.CallSessionInput{Title: "Outreach"})
	require.NoError(t, err)
	_, err = f.service.StartCallSession(ctx, "a1", call.ID)
	require.NoError(t, err)

	open, err := f.service.CreateActivityLog(ctx, "admin", domain.ActivityLogInput{AssistantID: "a1", CallSessionID: &call.ID, Activity: "Calling parents"})
	require.NoError(t, err)
	require.True(t, open.Open())

	other, err := f.service.CreateActivityLog(ctx, "admin", domain.ActivityLogInput{AssistantID: "a2", Activity: "Grading"})
	require.NoError(t, err)

	f.setNow(2025, time.January, 6, 9, 40)
	_, err = f.service.StopCallSession(ctx, "a1", call.ID)
	require.NoError(t, err)

	closed, err := f.service.GetActivityLog(ctx, open.ID)
	require.NoError(t, err)
	require.False(t, closed.Open())
	require.True(t, closed.EndTime.Equal(f.clock()))
	require.Equal(t, 40, *closed.DurationMinutes)

	untouched, err := f.service.GetActivityLog(ctx, other.ID)
	require.NoError(t, err)
	require.True(t, untouched.Open())
}

func TestAutoEndClosesActivityLogsAtSessionEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	end := time.Date(2025, time.January, 6, 10, 0, 0, 0, f.loc)
	call, err := f.service.CreateCallSession(ctx, "admin", domain.CallSessionInput{Title: "Outreach", EndTime: &end})
	require.NoError(t, err)
	_, err = f.service.StartCallSession(ctx, "a1", call.ID)
	require.NoError(t, err)

	logStart := time.Date(2025, time.January, 6, 9, 15, 0, 0, f.loc)
	entry, err := f.service.CreateActivityLog(ctx, "admin", domain.ActivityLogInput{
		AssistantID: "a1", CallSessionID: &call.ID, Activity: "Calling parents", StartTime: &logStart,
	})
	require.NoError(t, err)

	f.setNow(2025, time.January, 6, 10, 20)
	ended, err := f.service.EndExpiredCallSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, ended)

	closed, err := f.service.GetActivityLog(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, closed.EndTime.Equal(end), "closed at the session end, not at sweep time")
	require.Equal(t, 45, *closed.DurationMinutes)

	open, err := f.service.ListActivityLogs(ctx, domain.ActivityLogFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestActivityLogCrudAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateActivityLog(ctx, "admin", domain.ActivityLogInput{AssistantID: "a1"})
	require.ErrorIs(t, err, domain.ErrValidation)

	missing := "nope"
	_, err = f.service.CreateActivityLog(ctx, "admin", domain.ActivityLogInput{AssistantID: "a1", Activity: "Calls", CallSessionID: &missing})
	require.ErrorIs(t, err, domain.ErrValidation)

	early := f.clock().Add(-time.Hour)
	_, err = f.service.CreateActivityLog(ctx, "admin", domain.ActivityLogInput{AssistantID: "a1", Activity: "Calls", EndTime: &early})
	require.ErrorIs(t, err, domain.ErrValidation)

	entry, err := f.service.CreateActivityLog(ctx, "admin", domain.ActivityLogInput{AssistantID: "a1", Activity: "Calls"})
	require.NoError(t, err)
	require.True(t, entry.StartTime.Equal(f.clock()))

	end := f.clock().Add(90 * time.Minute)
	updated, err := f.service.UpdateActivityLog(ctx, "admin", entry.ID, domain.ActivityLogInput{AssistantID: "a1", Activity: "Calls done", EndTime: &end})
	require.NoError(t, err)
	require.True(t, updated.StartTime.Equal(entry.StartTime), "start is kept when omitted")
	require.Equal(t, 90, *updated.DurationMinutes)

	backup, err := f.service.DeleteActivityLog(ctx, "admin", entry.ID, "duplicate")
	require.NoError(t, err)
	require.Equal(t, domain.BackupActivityLog, backup.ItemType)
	_, err = f.service.GetActivityLog(ctx, entry.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.service.RestoreBackup(ctx, "admin", backup.ID)
	require.NoError(t, err)
	restored, err := f.service.GetActivityLog(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, "Calls done", restored.Activity)
}

func TestActivityLogCloseClampsToStart(t *testing.T) {
	start := time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC)
	entry := domain.ActivityLog{AssistantID: "a1", Activity: "Calls", StartTime: start}

	entry.Close(start.Add(-time.Hour))
	require.True(t, entry.EndTime.Equal(start))
	require.Zero(t, *entry.DurationMinutes)
	require.NoError(t, entry.Validate())

	entry.Close(start.Add(29*time.Minute + 30*time.Second))
	require.Equal(t, 30, *entry.DurationMinutes)
}

func TestDashboardStatsCountsToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	def := f.weekly("a1", 1, 10, 0)
	f.oneTime("a2", time.Date(2025, time.January, 8, 12, 0, 0, 0, f.loc))

	f.setNow(2025, time.January, 5, 10, 0)
	_, err := f.service.RecordAttendanceManually(ctx, "admin", domain.ManualAttendanceInput{AssistantID: "a3", Subject: "Library duty"})
	require.NoError(t, err)

	f.setNow(2025, time.January, 6, 10, 10)
	_, err = f.mark("a1", def.ID)
	require.NoError(t, err)

	call, err := f.service.CreateCallSession(ctx, "admin", domain.CallSessionInput{Title: "Outreach"})
	require.NoError(t, err)
	_, err = f.service.StartCallSession(ctx, "a1", call.ID)
	require.NoError(t, err)

	stats, err := f.service.DashboardStats(ctx)
	require.NoError(t, err)
	require.Equal(t, "2025-01-06", stats.CivilDay)
	require.Equal(t, 1, stats.Centers)
	require.Equal(t, 2, stats.Sessions)
	require.Equal(t, 1, stats.WeeklySessions)
	require.Equal(t, 1, stats.OneTimeSessions)
	require.Equal(t, 2, stats.ActiveSessions)
	require.Equal(t, 1, stats.ActiveCallSessions)
	require.Equal(t, 1, stats.TodayAttendance, "yesterday's record is excluded")
	require.Equal(t, 1, stats.TodayLate)
	require.Equal(t, 1, stats.TodayDistinctPeople)
}

type failingSink struct{ calls atomic.Int32 }

func (s *failingSink) RecordAudit(context.Context, domain.AuditEntry) error {
	s.calls.Add(1)
	return errors.New("audit store down")
}

func TestAuditFailureDoesNotBlockMarking(t *testing.T) {
	sink := &failingSink{}
	f := newFixture(t, domain.WithAuditSink(sink))
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 10, 0)

	record, err := f.mark("a1", def.ID)
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)
	require.GreaterOrEqual(t, sink.calls.Load(), int32(1))

	entries, err := f.service.ListAuditEntries(context.Background(), "", 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMarkingIsAudited(t *testing.T) {
	f := newFixture(t)
	def := f.weekly("a1", 1, 10, 0)
	f.setNow(2025, time.January, 6, 10, 0)

	record, err := f.mark("a1", def.ID)
	require.NoError(t, err)

	entries, err := f.service.ListAuditEntries(context.Background(), "a1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.AuditAttendanceRecorded, entries[0].Action)
	require.Equal(t, record.ID, entries[0].EntityID)
}
