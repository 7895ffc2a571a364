// Package events defines the attendance event payloads published through the outbox.
package events

import "time"

// Event types carried in the event_type header.
const (
	TypeAttendanceRecorded = "attendance.recorded"
	TypeAttendanceChanged  = "attendance.changed"
)

// Change kinds for AttendanceChanged.
const (
	ChangeUpdated  = "updated"
	ChangeDeleted  = "deleted"
	ChangeRestored = "restored"
)

// AttendanceRecorded is emitted once per newly stored attendance record.
type AttendanceRecorded struct {
	AttendanceID   string    `json:"attendance_id"`
	AssistantID    string    `json:"assistant_id"`
	Source         string    `json:"source"`
	SessionID      string    `json:"session_id,omitempty"`
	CallSessionID  string    `json:"call_session_id,omitempty"`
	CenterID       string    `json:"center_id,omitempty"`
	SessionSubject string    `json:"session_subject"`
	TimeRecorded   time.Time `json:"time_recorded"`
	CivilDay       string    `json:"civil_day"`
	DelayMinutes   int       `json:"delay_minutes"`
}

// AttendanceChanged tracks admin edits, soft deletes and restores of a record.
type AttendanceChanged struct {
	AttendanceID string    `json:"attendance_id"`
	AssistantID  string    `json:"assistant_id"`
	Change       string    `json:"change"`
	DelayMinutes int       `json:"delay_minutes"`
	OccurredAt   time.Time `json:"occurred_at"`
	Reason       string    `json:"reason,omitempty"`
}
