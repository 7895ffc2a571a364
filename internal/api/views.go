package api

import (
	"encoding/json"
	"time"

	"example.com/attendance/internal/domain"
)

// ListResponse packages list results. NextCursor is set only on paginated listings.
type ListResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// CenterView exposes a center.
type CenterView struct {
	CenterID  string    `json:"center_id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	RadiusM   float64   `json:"radius_m"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionView exposes a session definition.
type SessionView struct {
	SessionID   string    `json:"session_id"`
	CenterID    string    `json:"center_id"`
	AssistantID *string   `json:"assistant_id"`
	Subject     string    `json:"subject"`
	StartTime   time.Time `json:"start_time"`
	Recurrence  string    `json:"recurrence"`
	DayOfWeek   *int      `json:"day_of_week,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OccurrenceView is a session projected onto a civil date, as seen by an assistant.
type OccurrenceView struct {
	SessionID         string      `json:"session_id"`
	Subject           string      `json:"subject"`
	Source            string      `json:"source"`
	Date              string      `json:"date"`
	Start             time.Time   `json:"start"`
	End               time.Time   `json:"end"`
	DueToday          bool        `json:"due_today"`
	Center            *CenterView `json:"center,omitempty"`
	Attended          bool        `json:"attended"`
	AttendanceID      string      `json:"attendance_id,omitempty"`
	DelayMinutes      *int        `json:"delay_minutes,omitempty"`
	DelayLabel        string      `json:"delay_label,omitempty"`
	CanMarkAttendance bool        `json:"can_mark_attendance"`
}

// AttendanceView exposes an attendance record.
type AttendanceView struct {
	AttendanceID   string     `json:"attendance_id"`
	AssistantID    string     `json:"assistant_id"`
	Source         string     `json:"source"`
	SessionID      *string    `json:"session_id,omitempty"`
	CallSessionID  *string    `json:"call_session_id,omitempty"`
	CenterID       *string    `json:"center_id,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	SessionSubject string     `json:"session_subject"`
	TimeRecorded   time.Time  `json:"time_recorded"`
	CivilDay       string     `json:"civil_day"`
	DelayMinutes   int        `json:"delay_minutes"`
	DelayLabel     string     `json:"delay_label"`
	Notes          string     `json:"notes,omitempty"`
	IsDeleted      bool       `json:"is_deleted"`
	DeletedBy      *string    `json:"deleted_by,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletionReason string     `json:"deletion_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CallSessionView exposes a call session.
type CallSessionView struct {
	CallSessionID string     `json:"call_session_id"`
	Title         string     `json:"title"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Status        string     `json:"status"`
	StartedBy     *string    `json:"started_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ActivityLogView exposes an activity log.
type ActivityLogView struct {
	ActivityLogID   string     `json:"activity_log_id"`
	AssistantID     string     `json:"assistant_id"`
	CallSessionID   *string    `json:"call_session_id,omitempty"`
	Activity        string     `json:"activity"`
	Notes           string     `json:"notes,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DashboardView exposes the admin overview counts.
type DashboardView struct {
	CivilDay            string `json:"civil_day"`
	Centers             int    `json:"centers"`
	Sessions            int    `json:"sessions"`
	WeeklySessions      int    `json:"weekly_sessions"`
	OneTimeSessions     int    `json:"one_time_sessions"`
	ActiveSessions      int    `json:"active_sessions"`
	ActiveCallSessions  int    `json:"active_call_sessions"`
	OpenActivityLogs    int    `json:"open_activity_logs"`
	TodayAttendance     int    `json:"today_attendance"`
	TodayLate           int    `json:"today_late"`
	TodayDistinctPeople int    `json:"today_distinct_assistants"`
}

// BackupView exposes a deletion backup.
type BackupView struct {
	BackupID   string          `json:"backup_id"`
	ItemType   string          `json:"item_type"`
	ItemID     string          `json:"item_id"`
	Snapshot   json.RawMessage `json:"snapshot"`
	DeletedBy  string          `json:"deleted_by"`
	Reason     string          `json:"reason,omitempty"`
	DeletedAt  time.Time       `json:"deleted_at"`
	CanRestore bool            `json:"can_restore"`
	RestoredAt *time.Time      `json:"restored_at,omitempty"`
}

// AuditView exposes an audit entry.
type AuditView struct {
	AuditID    string         `json:"audit_id"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func toCenterView(c domain.Center) CenterView {
	return CenterView{
		CenterID:  c.ID,
		Name:      c.Name,
		Latitude:  c.Location.Latitude,
		Longitude: c.Location.Longitude,
		RadiusM:   c.RadiusM,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toSessionView(d domain.SessionDefinition) SessionView {
	return SessionView{
		SessionID:   d.ID,
		CenterID:    d.CenterID,
		AssistantID: d.AssistantID,
		Subject:     d.Subject,
		StartTime:   d.StartTime,
		Recurrence:  string(d.Recurrence),
		DayOfWeek:   d.DayOfWeek,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toOccurrenceView(occ domain.Occurrence, center *domain.Center, existing *domain.AttendanceRecord, canMark, dueToday bool) OccurrenceView {
	view := OccurrenceView{
		SessionID:         occ.Definition.ID,
		Subject:           occ.Definition.Subject,
		Source:            string(occ.Source),
		Date:              occ.Date,
		Start:             occ.Start,
		End:               occ.End,
		DueToday:          dueToday,
		CanMarkAttendance: canMark,
	}
	if center != nil {
		cv := toCenterView(*center)
		view.Center = &cv
	}
	if existing != nil {
		delay := existing.DelayMinutes
		view.Attended = true
		view.AttendanceID = existing.ID
		view.DelayMinutes = &delay
		view.DelayLabel = domain.DelayLabel(delay)
	}
	return view
}

func toAttendanceView(r domain.AttendanceRecord) AttendanceView {
	view := AttendanceView{
		AttendanceID:   r.ID,
		AssistantID:    r.AssistantID,
		Source:         string(r.Source),
		SessionID:      r.SessionID,
		CallSessionID:  r.CallSessionID,
		CenterID:       r.CenterID,
		SessionSubject: r.SessionSubject,
		TimeRecorded:   r.TimeRecorded,
		CivilDay:       r.CivilDay,
		DelayMinutes:   r.DelayMinutes,
		DelayLabel:     domain.DelayLabel(r.DelayMinutes),
		Notes:          r.Notes,
		IsDeleted:      r.IsDeleted,
		DeletedBy:      r.DeletedBy,
		DeletedAt:      r.DeletedAt,
		DeletionReason: r.DeletionReason,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Location != nil {
		lat, lng := r.Location.Latitude, r.Location.Longitude
		view.Latitude = &lat
		view.Longitude = &lng
	}
	return view
}

func toCallSessionView(c domain.CallSession) CallSessionView {
	return CallSessionView{
		CallSessionID: c.ID,
		Title:         c.Title,
		StartTime:     c.StartTime,
		EndTime:       c.EndTime,
		Status:        string(c.Status),
		StartedBy:     c.StartedBy,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toActivityLogView(l domain.ActivityLog) ActivityLogView {
	return ActivityLogView{
		ActivityLogID:   l.ID,
		AssistantID:     l.AssistantID,
		CallSessionID:   l.CallSessionID,
		Activity:        l.Activity,
		Notes:           l.Notes,
		StartTime:       l.StartTime,
		EndTime:         l.EndTime,
		DurationMinutes: l.DurationMinutes,
		CreatedBy:       l.CreatedBy,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func toDashboardView(d domain.DashboardStats) DashboardView {
	return DashboardView(d)
}

func toBackupView(b domain.DeletionBackup) BackupView {
	return BackupView{
		BackupID:   b.ID,
		ItemType:   string(b.ItemType),
		ItemID:     b.ItemID,
		Snapshot:   b.Snapshot,
		DeletedBy:  b.DeletedBy,
		Reason:     b.Reason,
		DeletedAt:  b.DeletedAt,
		CanRestore: b.CanRestore,
		RestoredAt: b.RestoredAt,
	}
}

func toAuditView(e domain.AuditEntry) AuditView {
	return AuditView{
		AuditID:    e.ID,
		ActorID:    e.ActorID,
		Action:     string(e.Action),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt,
	}
}
