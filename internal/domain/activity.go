package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxActivityLength = 150

// ActivityLog is a timed record of assistant work, optionally tied to a call session.
// A log with no end time is open.
type ActivityLog struct {
	ID              string
	AssistantID     string
	CallSessionID   *string
	Activity        string
	Notes           string
	StartTime       time.Time
	EndTime         *time.Time
	DurationMinutes *int
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the activity log invariants.
func (l ActivityLog) Validate() error {
	if strings.TrimSpace(l.AssistantID) == "" {
		return fmt.Errorf("%w: assistant_id is required", ErrValidation)
	}
	activity := strings.TrimSpace(l.Activity)
	if activity == "" {
		return fmt.Errorf("%w: activity is required", ErrValidation)
	}
	if utf8.RuneCountInString(activity) > maxActivityLength {
		return fmt.Errorf("%w: activity must be at most %d characters", ErrValidation, maxActivityLength)
	}
	if utf8.RuneCountInString(l.Notes) > maxNotesLength {
		return fmt.Errorf("%w: notes must be at most %d characters", ErrValidation, maxNotesLength)
	}
	if l.StartTime.IsZero() {
		return fmt.Errorf("%w: start_time is required", ErrValidation)
	}
	if l.EndTime != nil && l.EndTime.Before(l.StartTime) {
		return fmt.Errorf("%w: end_time must not precede start_time", ErrValidation)
	}
	return nil
}

// Open reports whether the log has no end time yet.
func (l ActivityLog) Open() bool { return l.EndTime == nil }

// Close ends the log at end, never before its start, and records the rounded duration.
func (l *ActivityLog) Close(end time.Time) {
	if end.Before(l.StartTime) {
		end = l.StartTime
	}
	end = end.UTC()
	minutes := int(math.Round(end.Sub(l.StartTime).Minutes()))
	l.EndTime = &end
	l.DurationMinutes = &minutes
}

// ActivityLogFilter narrows admin activity log listings.
type ActivityLogFilter struct {
	AssistantID   string
	CallSessionID string
	OpenOnly      bool
}

// Matches reports whether the log passes the filter.
func (f ActivityLogFilter) Matches(l ActivityLog) bool {
	if f.AssistantID != "" && l.AssistantID != f.AssistantID {
		return false
	}
	if f.CallSessionID != "" && (l.CallSessionID == nil || *l.CallSessionID != f.CallSessionID) {
		return false
	}
	if f.OpenOnly && !l.Open() {
		return false
	}
	return true
}

// ActivityLogInput is the admin-editable part of an activity log.
type ActivityLogInput struct {
	AssistantID   string
	CallSessionID *string
	Activity      string
	Notes         string
	StartTime     *time.Time
	EndTime       *time.Time
}

func (in ActivityLogInput) apply(l *ActivityLog, now time.Time) {
	l.AssistantID = strings.TrimSpace(in.AssistantID)
	l.CallSessionID = nil
	if in.CallSessionID != nil && strings.TrimSpace(*in.CallSessionID) != "" {
		id := strings.TrimSpace(*in.CallSessionID)
		l.CallSessionID = &id
	}
	l.Activity = strings.TrimSpace(in.Activity)
	l.Notes = strings.TrimSpace(in.Notes)
	l.StartTime = now
	if in.StartTime != nil {
		l.StartTime = in.StartTime.UTC()
	}
	l.EndTime = nil
	l.DurationMinutes = nil
	if in.EndTime != nil {
		end := in.EndTime.UTC()
		l.EndTime = &end
		minutes := int(math.Round(end.Sub(l.StartTime).Minutes()))
		l.DurationMinutes = &minutes
	}
}

// CreateActivityLog adds an activity log. The start time defaults to now.
func (s *Service) CreateActivityLog(ctx context.Context, actorID string, in ActivityLogInput) (*ActivityLog, error) {
	now := s.civil.Now().UTC()
	entry := ActivityLog{ID: uuid.NewString(), CreatedBy: actorID, CreatedAt: now, UpdatedAt: now}
	in.apply(&entry, now)
	if err := s.validateActivityLog(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.repo.CreateActivityLog(ctx, entry); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditActivityLogCreated, "activity_log", entry.ID, map[string]any{"assistant_id": entry.AssistantID})
	return &entry, nil
}

// UpdateActivityLog replaces an activity log's editable fields.
func (s *Service) UpdateActivityLog(ctx context.Context, actorID, id string, in ActivityLogInput) (*ActivityLog, error) {
	entry, err := s.GetActivityLog(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.civil.Now().UTC()
	if in.StartTime == nil {
		in.StartTime = &entry.StartTime
	}
	in.apply(entry, now)
	entry.UpdatedAt = now
	if err := s.validateActivityLog(ctx, *entry); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateActivityLog(ctx, *entry); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditActivityLogUpdated, "activity_log", entry.ID, nil)
	return entry, nil
}

func (s *Service) validateActivityLog(ctx context.Context, entry ActivityLog) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.CallSessionID == nil {
		return nil
	}
	call, err := s.repo.GetCallSession(ctx, *entry.CallSessionID)
	if err != nil {
		return err
	}
	if call == nil {
		return fmt.Errorf("%w: call session %s does not exist", ErrValidation, *entry.CallSessionID)
	}
	return nil
}

// GetActivityLog fetches an activity log by ID.
func (s *Service) GetActivityLog(ctx context.Context, id string) (*ActivityLog, error) {
	entry, err := s.repo.GetActivityLog(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: activity log %s", ErrNotFound, id)
	}
	return entry, nil
}

// ListActivityLogs lists activity logs newest first.
func (s *Service) ListActivityLogs(ctx context.Context, filter ActivityLogFilter) ([]ActivityLog, error) {
	return s.repo.ListActivityLogs(ctx, filter)
}

// DeleteActivityLog removes an activity log after snapshotting it.
func (s *Service) DeleteActivityLog(ctx context.Context, actorID, id, reason string) (*DeletionBackup, error) {
	entry, err := s.GetActivityLog(ctx, id)
	if err != nil {
		return nil, err
	}
	backup, err := s.backupFor(BackupActivityLog, entry.ID, entry, actorID, reason)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteActivityLog(ctx, id, backup); err != nil {
		return nil, err
	}
	s.notify(ctx, actorID, AuditActivityLogDeleted, "activity_log", id, map[string]any{"backup_id": backup.ID})
	return &backup, nil
}
