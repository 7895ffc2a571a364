package domain

import (
	"context"
	"time"
)

// CenterRepository manages centers.
type CenterRepository interface {
	CreateCenter(ctx context.Context, center Center) error
	UpdateCenter(ctx context.Context, center Center) error
	ListCenters(ctx context.Context) ([]Center, error)
	DeleteCenter(ctx context.Context, id string, backup DeletionBackup) error
	RestoreCenter(ctx context.Context, center Center) error
}

// SessionRepository manages session definitions.
type SessionRepository interface {
	CreateSession(ctx context.Context, def SessionDefinition) error
	UpdateSession(ctx context.Context, def SessionDefinition) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]SessionDefinition, error)
	// ListSessionsForDay returns the candidate definitions for one civil day: one-time
	// definitions starting in [from, to) and active weekly definitions on dayOfWeek,
	// restricted to the assistant or unassigned.
	ListSessionsForDay(ctx context.Context, assistantID string, from, to time.Time, dayOfWeek int) ([]SessionDefinition, error)
	DeleteSession(ctx context.Context, id string, backup DeletionBackup) error
	RestoreSession(ctx context.Context, def SessionDefinition) error
}

// CallSessionRepository manages call sessions.
type CallSessionRepository interface {
	CreateCallSession(ctx context.Context, call CallSession) error
	UpdateCallSession(ctx context.Context, call CallSession) error
	ListCallSessions(ctx context.Context) ([]CallSession, error)
	DeleteCallSession(ctx context.Context, id string, backup DeletionBackup) error
	RestoreCallSession(ctx context.Context, call CallSession) error
	// EndExpiredCallSessions completes active call sessions whose end time is at or
	// before now and returns them. Open activity logs linked to an ended session are
	// closed at the session end time in the same unit of work.
	EndExpiredCallSessions(ctx context.Context, now time.Time) ([]CallSession, error)
}

// ActivityLogRepository manages assistant activity logs.
type ActivityLogRepository interface {
	CreateActivityLog(ctx context.Context, entry ActivityLog) error
	GetActivityLog(ctx context.Context, id string) (*ActivityLog, error)
	UpdateActivityLog(ctx context.Context, entry ActivityLog) error
	ListActivityLogs(ctx context.Context, filter ActivityLogFilter) ([]ActivityLog, error)
	DeleteActivityLog(ctx context.Context, id string, backup DeletionBackup) error
	RestoreActivityLog(ctx context.Context, entry ActivityLog) error
	// CloseActivityLogs ends every open log linked to the call session at end and
	// returns the closed logs.
	CloseActivityLogs(ctx context.Context, callSessionID string, end, now time.Time) ([]ActivityLog, error)
}

// AttendanceRepository manages attendance records beyond the recording path.
type AttendanceRepository interface {
	AttendanceStore
	GetAttendance(ctx context.Context, id string) (*AttendanceRecord, error)
	UpdateAttendance(ctx context.Context, record AttendanceRecord) error
	ListAttendance(ctx context.Context, filter AttendanceFilter, cursor *Cursor, limit int) ([]AttendanceRecord, *Cursor, error)
	SoftDeleteAttendance(ctx context.Context, record AttendanceRecord, backup DeletionBackup) error
	RestoreAttendance(ctx context.Context, id string) error
}

// BackupRepository stores deletion snapshots.
type BackupRepository interface {
	GetBackup(ctx context.Context, id string) (*DeletionBackup, error)
	ListBackups(ctx context.Context, itemType BackupItemType, limit int) ([]DeletionBackup, error)
	// ClaimBackup atomically flips can_restore from true to false. It reports false
	// when the backup was already claimed.
	ClaimBackup(ctx context.Context, id string, at time.Time) (bool, error)
	ReleaseBackup(ctx context.Context, id string) error
	DeleteBackup(ctx context.Context, id string) error
}

// Repository is the full persistence port of the service.
type Repository interface {
	SessionCatalog
	CenterRepository
	SessionRepository
	CallSessionRepository
	ActivityLogRepository
	AttendanceRepository
	BackupRepository
}
