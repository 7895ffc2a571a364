// Package domain implements attendance scheduling, eligibility and recording rules.
package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const defaultAuditTimeout = 2 * time.Second

// Option configures optional Service behaviour.
type Option func(*Service)

// WithAuditSink routes audit entries to sink. If sink also implements AuditReader
// it backs ListAuditEntries.
func WithAuditSink(sink AuditSink) Option {
	return func(s *Service) {
		s.audit = sink
		if reader, ok := sink.(AuditReader); ok {
			s.auditReader = reader
		}
	}
}

// WithLogger overrides the logger used for best-effort failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service orchestrates attendance workflows for assistants and admins.
type Service struct {
	repo         Repository
	civil        *CivilTime
	resolver     *ScheduleResolver
	eval         *EligibilityEvaluator
	guard        *DuplicateGuard
	recorder     *Recorder
	audit        AuditSink
	auditReader  AuditReader
	auditTimeout time.Duration
	logger       *log.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, civil *CivilTime, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		civil:        civil,
		resolver:     NewScheduleResolver(civil),
		eval:         NewEligibilityEvaluator(civil),
		guard:        NewDuplicateGuard(civil, repo),
		recorder:     NewRecorder(civil, repo, repo),
		auditTimeout: defaultAuditTimeout,
		logger:       log.New(log.Writer(), "[domain] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Civil exposes the civil clock the service computes with.
func (s *Service) Civil() *CivilTime { return s.civil }

// TodaySession is one occurrence on an assistant's day with its marking status.
type TodaySession struct {
	Occurrence Occurrence
	Center     *Center
	Attendance *AttendanceRecord
	CanMark    bool
}

// TodaySessions lists the assistant's occurrences for the current civil day.
func (s *Service) TodaySessions(ctx context.Context, assistantID string) ([]TodaySession, error) {
	now := s.civil.Now()
	from, to := s.civil.DayBounds(now)

	defs, err := s.repo.ListSessionsForDay(ctx, assistantID, from, to, s.civil.DayOfWeek(now))
	if err != nil {
		return nil, err
	}

	occurrences := s.resolver.OccurrencesOn(defs, now, assistantID)
	centers := make(map[string]*Center)
	out := make([]TodaySession, 0, len(occurrences))
	for _, occ := range occurrences {
		center, ok := centers[occ.Definition.CenterID]
		if !ok {
			center, err = s.repo.GetCenter(ctx, occ.Definition.CenterID)
			if err != nil {
				return nil, err
			}
			centers[occ.Definition.CenterID] = center
		}

		existing, err := s.guard.FindExisting(ctx, assistantID, OccurrenceTarget(occ))
		if err != nil {
			return nil, err
		}
		out = append(out, TodaySession{
			Occurrence: occ,
			Center:     center,
			Attendance: existing,
			CanMark:    s.eval.CanMark(occ, now, existing),
		})
	}
	return out, nil
}

// SessionDetail describes one session from an assistant's perspective.
type SessionDetail struct {
	Occurrence Occurrence
	DueToday   bool
	Center     *Center
	Attendance *AttendanceRecord
	CanMark    bool
}

// SessionForAssistant returns today's occurrence of the session, or its next one.
func (s *Service) SessionForAssistant(ctx context.Context, assistantID, sessionID string) (*SessionDetail, error) {
	def, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if def == nil || !def.VisibleTo(assistantID) {
		return nil, fmt.Errorf("%w: session not found or not assigned to you", ErrNotFound)
	}

	now := s.civil.Now()
	detail := &SessionDetail{}
	if occ, ok := s.resolver.OccurrenceOn(*def, now); ok {
		detail.Occurrence = occ
		detail.DueToday = true
	} else if next, ok := s.resolver.NextOccurrence(*def, now); ok {
		detail.Occurrence = next
	} else {
		detail.Occurrence = s.resolver.Project(*def, now)
	}

	if detail.Center, err = s.repo.GetCenter(ctx, def.CenterID); err != nil {
		return nil, err
	}
	if detail.DueToday {
		detail.Attendance, err = s.guard.FindExisting(ctx, assistantID, OccurrenceTarget(detail.Occurrence))
		if err != nil {
			return nil, err
		}
		detail.CanMark = s.eval.CanMark(detail.Occurrence, now, detail.Attendance)
	}
	return detail, nil
}

// MarkAttendance records an assistant's own attendance.
func (s *Service) MarkAttendance(ctx context.Context, in MarkInput) (*AttendanceRecord, error) {
	record, err := s.recorder.Record(ctx, in)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, in.AssistantID, AuditAttendanceRecorded, "attendance", record.ID, map[string]any{
		"source":        string(record.Source),
		"delay_minutes": record.DelayMinutes,
		"civil_day":     record.CivilDay,
	})
	return record, nil
}

// CenterInput is the admin payload for creating or replacing a center.
type CenterInput struct {
	Name      string
	Latitude  float64
	Longitude float64
	RadiusM   *float64
	Address   string
}

func (in CenterInput) apply(c *Center) {
	c.Name = strings.TrimSpace(in.Name)
	c.Location = Coordinate{Latitude: in.Latitude, Longitude: in.Longitude}
	c.RadiusM = DefaultCenterRadiusM
	if in.RadiusM != nil {
		c.RadiusM = *in.RadiusM
	}
	c.Address = strings.TrimSpace(in.Address)
}

// CreateCenter adds a center.
func (s *Service) CreateCenter(ctx context.Context, actorID string, in CenterInput) (*Center, error) {
	now := s.civil.Now().UTC()
	center := Center{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	in.apply(&center)
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCenter(ctx, center); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditCenterCreated, "center", center.ID, map[string]any{"name": center.Name})
	return &center, nil
}

// UpdateCenter replaces a center's attributes.
func (s *Service) UpdateCenter(ctx context.Context, actorID, id string, in CenterInput) (*Center, error) {
	center, err := s.GetCenter(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(center)
	center.UpdatedAt = s.civil.Now().UTC()
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCenter(ctx, *center); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditCenterUpdated, "center", center.ID, map[string]any{"name": center.Name, "radius_m": center.RadiusM})
	return center, nil
}

// GetCenter fetches a center by ID.
func (s *Service) GetCenter(ctx context.Context, id string) (*Center, error) {
	center, err := s.repo.GetCenter(ctx, id)
	if err != nil {
		return nil, err
	}
	if center == nil {
		return nil, fmt.Errorf("%w: center %s", ErrNotFound, id)
	}
	return center, nil
}

// ListCenters lists all centers.
func (s *Service) ListCenters(ctx context.Context) ([]Center, error) {
	return s.repo.ListCenters(ctx)
}

// DeleteCenter removes a center after snapshotting it.
func (s *Service) DeleteCenter(ctx context.Context, actorID, id, reason string) (*DeletionBackup, error) {
	center, err := s.GetCenter(ctx, id)
	if err != nil {
		return nil, err
	}
	backup, err := s.backupFor(BackupCenter, center.ID, center, actorID, reason)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteCenter(ctx, id, backup); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditCenterDeleted, "center", id, map[string]any{"backup_id": backup.ID, "reason": reason})
	return &backup, nil
}

// SessionInput is the admin payload for creating or replacing a session definition.
type SessionInput struct {
	CenterID    string
	AssistantID *string
	Subject     string
	StartTime   time.Time
	Recurrence  Recurrence
	DayOfWeek   *int
	IsActive    *bool
}

func (in SessionInput) apply(d *SessionDefinition) {
	d.CenterID = strings.TrimSpace(in.CenterID)
	d.AssistantID = nil
	if in.AssistantID != nil && strings.TrimSpace(*in.AssistantID) != "" {
		assistant := strings.TrimSpace(*in.AssistantID)
		d.AssistantID = &assistant
	}
	d.Subject = strings.TrimSpace(in.Subject)
	d.StartTime = in.StartTime.UTC()
	d.Recurrence = in.Recurrence
	d.DayOfWeek = nil
	if in.Recurrence == RecurrenceWeekly && in.DayOfWeek != nil {
		day := *in.DayOfWeek
		d.DayOfWeek = &day
	}
	if in.IsActive != nil {
		d.IsActive = *in.IsActive
	}
}

// CreateSession adds a session definition.
func (s *Service) CreateSession(ctx context.Context, actorID string, in SessionInput) (*SessionDefinition, error) {
	now := s.civil.Now().UTC()
	def := SessionDefinition{ID: uuid.NewString(), IsActive: true, CreatedAt: now, UpdatedAt: now}
	in.apply(&def)
	if err := s.validateSession(ctx, def); err != nil {
		return nil, err
	}
	if err := s.repo.CreateSession(ctx, def); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditSessionCreated, "session", def.ID, map[string]any{"subject": def.Subject, "recurrence": string(def.Recurrence)})
	return &def, nil
}

// UpdateSession replaces a session definition. Existing attendance keeps its cached subject.
func (s *Service) UpdateSession(ctx context.Context, actorID, id string, in SessionInput) (*SessionDefinition, error) {
	def, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(def)
	def.UpdatedAt = s.civil.Now().UTC()
	if err := s.validateSession(ctx, *def); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSession(ctx, *def); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditSessionUpdated, "session", def.ID, map[string]any{"subject": def.Subject})
	return def, nil
}

func (s *Service) validateSession(ctx context.Context, def SessionDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	center, err := s.repo.GetCenter(ctx, def.CenterID)
	if err != nil {
		return err
	}
	if center == nil {
		return fmt.Errorf("%w: center %s does not exist", ErrValidation, def.CenterID)
	}
	return nil
}

// GetSession fetches a session definition by ID.
func (s *Service) GetSession(ctx context.Context, id string) (*SessionDefinition, error) {
	def, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return def, nil
}

// ListSessions lists session definitions.
func (s *Service) ListSessions(ctx context.Context, filter SessionFilter) ([]SessionDefinition, error) {
	return s.repo.ListSessions(ctx, filter)
}

// DeleteSession removes a session definition after snapshotting it.
func (s *Service) DeleteSession(ctx context.Context, actorID, id, reason string) (*DeletionBackup, error) {
	def, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	backup, err := s.backupFor(BackupSession, def.ID, def, actorID, reason)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteSession(ctx, id, backup); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditSessionDeleted, "session", id, map[string]any{"backup_id": backup.ID, "subject": def.Subject})
	return &backup, nil
}

// CallSessionInput is the admin payload for creating or replacing a call session.
type CallSessionInput struct {
	Title     string
	StartTime *time.Time
	EndTime   *time.Time
}

func (in CallSessionInput) apply(c *CallSession) {
	c.Title = strings.TrimSpace(in.Title)
	c.StartTime = utcPtr(in.StartTime)
	c.EndTime = utcPtr(in.EndTime)
}

// CreateCallSession adds a pending call session.
func (s *Service) CreateCallSession(ctx context.Context, actorID string, in CallSessionInput) (*CallSession, error) {
	now := s.civil.Now().UTC()
	call := CallSession{ID: uuid.NewString(), Status: CallSessionPending, CreatedAt: now, UpdatedAt: now}
	in.apply(&call)
	if err := call.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCallSession(ctx, call); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditCallSessionCreated, "call_session", call.ID, map[string]any{"title": call.Title})
	return &call, nil
}

// UpdateCallSession replaces a call session's title and schedule.
func (s *Service) UpdateCallSession(ctx context.Context, actorID, id string, in CallSessionInput) (*CallSession, error) {
	call, err := s.GetCallSession(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(call)
	call.UpdatedAt = s.civil.Now().UTC()
	if err := call.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCallSession(ctx, *call); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditCallSessionUpdated, "call_session", call.ID, map[string]any{"title": call.Title})
	return call, nil
}

// GetCallSession fetches a call session by ID.
func (s *Service) GetCallSession(ctx context.Context, id string) (*CallSession, error) {
	call, err := s.repo.GetCallSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, fmt.Errorf("%w: call session %s", ErrNotFound, id)
	}
	return call, nil
}

// ListCallSessions lists call sessions.
func (s *Service) ListCallSessions(ctx context.Context) ([]CallSession, error) {
	return s.repo.ListCallSessions(ctx)
}

// StartCallSession moves a pending call session to active.
func (s *Service) StartCallSession(ctx context.Context, actorID, id string) (*CallSession, error) {
	call, err := s.GetCallSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if call.Status != CallSessionPending {
		return nil, fmt.Errorf("%w: call session is %s", ErrValidation, call.Status)
	}
	now := s.civil.Now().UTC()
	call.Status = CallSessionActive
	call.StartedBy = &actorID
	// An early start replaces the scheduled start so the stop time can never precede it.
	if call.StartTime == nil || call.StartTime.After(now) {
		call.StartTime = &now
	}
	if call.EndTime != nil && call.EndTime.Before(*call.StartTime) {
		call.EndTime = nil
	}
	call.UpdatedAt = now
	if err := call.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCallSession(ctx, *call); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditCallSessionStarted, "call_session", call.ID, nil)
	return call, nil
}

// StopCallSession completes an active call session.
func (s *Service) StopCallSession(ctx context.Context, actorID, id string) (*CallSession, error) {
	call, err := s.GetCallSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if call.Status != CallSessionActive {
		return nil, fmt.Errorf("%w: call session is %s", ErrValidation, call.Status)
	}
	now := s.civil.Now().UTC()
	end := now
	if call.StartTime != nil && end.Before(*call.StartTime) {
		end = *call.StartTime
	}
	call.Status = CallSessionCompleted
	call.EndTime = &end
	call.UpdatedAt = now
	if err := call.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCallSession(ctx, *call); err != nil {
		return nil, err
	}
	closed, err := s.repo.CloseActivityLogs(ctx, call.ID, end, now)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditCallSessionStopped, "call_session", call.ID, map[string]any{"closed_activity_logs": len(closed)})
	return call, nil
}

// DeleteCallSession removes a call session after snapshotting it.
func (s *Service) DeleteCallSession(ctx context.Context, actorID, id, reason string) (*DeletionBackup, error) {
	call, err := s.GetCallSession(ctx, id)
	if err != nil {
		return nil, err
	}
	backup, err := s.backupFor(BackupCallSession, call.ID, call, actorID, reason)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteCallSession(ctx, id, backup); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditCallSessionDeleted, "call_session", id, map[string]any{"backup_id": backup.ID})
	return &backup, nil
}

// EndExpiredCallSessions completes active call sessions whose end time has passed.
func (s *Service) EndExpiredCallSessions(ctx context.Context) (int, error) {
	ended, err := s.repo.EndExpiredCallSessions(ctx, s.civil.Now().UTC())
	if err != nil {
		return 0, err
	}
	for _, call := range ended {
		s.notify(ctx, SystemActor, AuditCallSessionAutoEnd, "call_session", call.ID, map[string]any{"title": call.Title})
	}
	return len(ended), nil
}

// ManualAttendanceInput is an admin-entered attendance record. Window and geofence
// checks are skipped; the per-source uniqueness rules still apply.
type ManualAttendanceInput struct {
	AssistantID   string
	SessionID     string
	CallSessionID string
	Subject       string
	Location      *Coordinate
	TimeRecorded  time.Time
	DelayMinutes  *int
	Notes         string
}

// RecordAttendanceManually stores an admin-entered record.
func (s *Service) RecordAttendanceManually(ctx context.Context, actorID string, in ManualAttendanceInput) (*AttendanceRecord, error) {
	if strings.TrimSpace(in.AssistantID) == "" {
		return nil, fmt.Errorf("%w: assistant_id is required", ErrValidation)
	}
	if in.SessionID != "" && in.CallSessionID != "" {
		return nil, fmt.Errorf("%w: session_id and call_session_id are mutually exclusive", ErrValidation)
	}
	at := in.TimeRecorded
	if at.IsZero() {
		at = s.civil.Now()
	}

	record := AttendanceRecord{
		ID:             uuid.NewString(),
		AssistantID:    in.AssistantID,
		Source:         SourceOther,
		Location:       in.Location,
		SessionSubject: strings.TrimSpace(in.Subject),
		TimeRecorded:   at.UTC(),
		CivilDay:       s.civil.CivilDate(at),
		Notes:          in.Notes,
	}
	var target MarkTarget

	switch {
	case in.SessionID != "":
		def, err := s.GetSession(ctx, in.SessionID)
		if err != nil {
			return nil, err
		}
		center, err := s.GetCenter(ctx, def.CenterID)
		if err != nil {
			return nil, err
		}
		sessionID, centerID := def.ID, center.ID
		record.Source = def.Source()
		record.SessionID = &sessionID
		record.CenterID = &centerID
		record.SessionSubject = def.Subject
		if record.Location == nil {
			location := center.Location
			record.Location = &location
		}
		if occ, ok := s.resolver.OccurrenceOn(*def, at); ok {
			record.DelayMinutes = max(0, s.eval.DelayMinutes(occ, at))
		}
		target = MarkTarget{Source: record.Source, SessionID: def.ID, Day: at}
	case in.CallSessionID != "":
		call, err := s.GetCallSession(ctx, in.CallSessionID)
		if err != nil {
			return nil, err
		}
		callID := call.ID
		record.Source = SourceCallSession
		record.CallSessionID = &callID
		record.SessionSubject = call.Title
		target = CallSessionTarget(call.ID)
	default:
		target = MarkTarget{Source: SourceOther, Day: at}
	}
	if in.DelayMinutes != nil {
		record.DelayMinutes = *in.DelayMinutes
	}
	record.CreatedAt = s.civil.Now().UTC()
	record.UpdatedAt = record.CreatedAt
	if err := record.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.guard.FindExisting(ctx, record.AssistantID, target)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: record %s already covers this mark", ErrDuplicate, existing.ID)
	}
	if err := s.repo.CreateAttendance(ctx, record); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditAttendanceManual, "attendance", record.ID, map[string]any{
		"assistant_id":  record.AssistantID,
		"source":        string(record.Source),
		"delay_minutes": record.DelayMinutes,
	})
	return &record, nil
}

// GetAttendance fetches a record by ID, including soft-deleted ones.
func (s *Service) GetAttendance(ctx context.Context, id string) (*AttendanceRecord, error) {
	record, err := s.repo.GetAttendance(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: attendance %s", ErrNotFound, id)
	}
	return record, nil
}

// ListAttendance lists records newest first with cursor pagination.
func (s *Service) ListAttendance(ctx context.Context, filter AttendanceFilter, cursor *Cursor, limit int) ([]AttendanceRecord, *Cursor, error) {
	return s.repo.ListAttendance(ctx, filter, cursor, limit)
}

// AttendanceUpdate carries admin edits. Nil fields are left unchanged.
type AttendanceUpdate struct {
	Notes        *string
	DelayMinutes *int
	TimeRecorded *time.Time
}

// UpdateAttendance edits a live record in place. Negative delays are accepted here.
func (s *Service) UpdateAttendance(ctx context.Context, actorID, id string, update AttendanceUpdate) (*AttendanceRecord, error) {
	record, err := s.GetAttendance(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.IsDeleted {
		return nil, fmt.Errorf("%w: attendance %s is deleted", ErrNotFound, id)
	}

	changes := map[string]any{}
	if update.Notes != nil {
		record.Notes = *update.Notes
		changes["notes"] = *update.Notes
	}
	if update.DelayMinutes != nil {
		changes["delay_minutes"] = map[string]int{"from": record.DelayMinutes, "to": *update.DelayMinutes}
		record.DelayMinutes = *update.DelayMinutes
	}
	if update.TimeRecorded != nil {
		record.TimeRecorded = update.TimeRecorded.UTC()
		record.CivilDay = s.civil.CivilDate(*update.TimeRecorded)
		changes["time_recorded"] = record.TimeRecorded
	}
	record.UpdatedAt = s.civil.Now().UTC()
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAttendance(ctx, *record); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditAttendanceUpdated, "attendance", record.ID, changes)
	return record, nil
}

// DeleteAttendance soft-deletes a record and snapshots it for restore.
func (s *Service) DeleteAttendance(ctx context.Context, actorID, id, reason string) (*DeletionBackup, error) {
	if utf8.RuneCountInString(reason) > maxDeletionReasonLength {
		return nil, fmt.Errorf("%w: deletion reason must be at most %d characters", ErrValidation, maxDeletionReasonLength)
	}
	record, err := s.GetAttendance(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.IsDeleted {
		return nil, fmt.Errorf("%w: attendance %s is already deleted", ErrNotFound, id)
	}
	backup, err := s.backupFor(BackupAttendance, record.ID, record, actorID, reason)
	if err != nil {
		return nil, err
	}

	now := s.civil.Now().UTC()
	record.IsDeleted = true
	record.DeletedBy = &actorID
	record.DeletedAt = &now
	record.DeletionReason = reason
	record.UpdatedAt = now
	if err := s.repo.SoftDeleteAttendance(ctx, *record, backup); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditAttendanceDeleted, "attendance", record.ID, map[string]any{"backup_id": backup.ID, "reason": reason})
	return &backup, nil
}

// ListBackups lists deletion backups, optionally filtered by item type.
func (s *Service) ListBackups(ctx context.Context, itemType BackupItemType, limit int) ([]DeletionBackup, error) {
	return s.repo.ListBackups(ctx, itemType, limit)
}

// RestoreBackup re-creates the snapshotted item. A backup restores at most once;
// the claim is released again if the item cannot be re-created.
func (s *Service) RestoreBackup(ctx context.Context, actorID, id string) (*DeletionBackup, error) {
	backup, err := s.repo.GetBackup(ctx, id)
	if err != nil {
		return nil, err
	}
	if backup == nil {
		return nil, fmt.Errorf("%w: backup %s", ErrNotFound, id)
	}
	if !backup.CanRestore {
		return nil, fmt.Errorf("%w: backup %s", ErrBackupConsumed, id)
	}

	now := s.civil.Now().UTC()
	claimed, err := s.repo.ClaimBackup(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: backup %s", ErrBackupConsumed, id)
	}

	if err := s.restoreItem(ctx, *backup); err != nil {
		if releaseErr := s.repo.ReleaseBackup(ctx, id); releaseErr != nil {
			s.logger.Printf("release backup %s after failed restore: %v", id, releaseErr)
		}
		return nil, err
	}

	backup.CanRestore = false
	backup.RestoredAt = &now
	s.notify(ctx, actorID, AuditBackupRestored, string(backup.ItemType), backup.ItemID, map[string]any{"backup_id": backup.ID})
	return backup, nil
}

func (s *Service) restoreItem(ctx context.Context, backup DeletionBackup) error {
	switch backup.ItemType {
	case BackupCenter:
		var center Center
		if err := json.Unmarshal(backup.Snapshot, &center); err != nil {
			return fmt.Errorf("%w: corrupt center snapshot: %v", ErrValidation, err)
		}
		return s.repo.RestoreCenter(ctx, center)
	case BackupSession:
		var def SessionDefinition
		if err := json.Unmarshal(backup.Snapshot, &def); err != nil {
			return fmt.Errorf("%w: corrupt session snapshot: %v", ErrValidation, err)
		}
		return s.repo.RestoreSession(ctx, def)
	case BackupCallSession:
		var call CallSession
		if err := json.Unmarshal(backup.Snapshot, &call); err != nil {
			return fmt.Errorf("%w: corrupt call session snapshot: %v", ErrValidation, err)
		}
		return s.repo.RestoreCallSession(ctx, call)
	case BackupActivityLog:
		var entry ActivityLog
		if err := json.Unmarshal(backup.Snapshot, &entry); err != nil {
			return fmt.Errorf("%w: corrupt activity log snapshot: %v", ErrValidation, err)
		}
		return s.repo.RestoreActivityLog(ctx, entry)
	case BackupAttendance:
		return s.repo.RestoreAttendance(ctx, backup.ItemID)
	}
	return fmt.Errorf("%w: unknown backup item type %q", ErrValidation, backup.ItemType)
}

// PurgeBackup permanently removes a backup.
func (s *Service) PurgeBackup(ctx context.Context, actorID, id string) error {
	backup, err := s.repo.GetBackup(ctx, id)
	if err != nil {
		return err
	}
	if backup == nil {
		return fmt.Errorf("%w: backup %s", ErrNotFound, id)
	}
	if err := s.repo.DeleteBackup(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, actorID, AuditBackupPurged, string(backup.ItemType), backup.ItemID, map[string]any{"backup_id": id})
	return nil
}

// ListAuditEntries returns recent audit entries, newest first.
func (s *Service) ListAuditEntries(ctx context.Context, actorID string, limit int) ([]AuditEntry, error) {
	if s.auditReader == nil {
		return []AuditEntry{}, nil
	}
	return s.auditReader.ListAuditEntries(ctx, actorID, limit)
}

func (s *Service) backupFor(itemType BackupItemType, itemID string, item any, actorID, reason string) (DeletionBackup, error) {
	if utf8.RuneCountInString(reason) > maxDeletionReasonLength {
		return DeletionBackup{}, fmt.Errorf("%w: deletion reason must be at most %d characters", ErrValidation, maxDeletionReasonLength)
	}
	return newBackup(itemType, itemID, item, actorID, reason, s.civil.Now().UTC())
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
