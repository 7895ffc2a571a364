package api

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// MarkAttendanceRequest is the payload for POST /v1/attendance.
type MarkAttendanceRequest struct {
	SessionID     string   `json:"session_id" validate:"required_without=CallSessionID,excluded_with=CallSessionID"`
	CallSessionID string   `json:"call_session_id"`
	Latitude      *float64 `json:"latitude" validate:"required_with=SessionID,omitempty,gte=-90,lte=90"`
	Longitude     *float64 `json:"longitude" validate:"required_with=SessionID,omitempty,gte=-180,lte=180"`
	Notes         string   `json:"notes" validate:"max=500"`
}

// CenterRequest is the payload for creating or replacing a center.
type CenterRequest struct {
	Name      string   `json:"name" validate:"required,max=150"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	RadiusM   *float64 `json:"radius_m" validate:"omitempty,gte=1,lte=500"`
	Address   string   `json:"address" validate:"max=300"`
}

// SessionRequest is the payload for creating or replacing a session definition.
type SessionRequest struct {
	CenterID    string    `json:"center_id" validate:"required"`
	AssistantID *string   `json:"assistant_id"`
	Subject     string    `json:"subject" validate:"required,max=150"`
	StartTime   time.Time `json:"start_time"`
	Recurrence  string    `json:"recurrence" validate:"required,oneof=one_time weekly"`
	DayOfWeek   *int      `json:"day_of_week" validate:"required_if=Recurrence weekly,omitempty,min=1,max=7"`
	IsActive    *bool     `json:"is_active"`
}

// CallSessionRequest is the payload for creating or replacing a call session.
type CallSessionRequest struct {
	Title     string     `json:"title" validate:"required,max=150"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// ActivityLogRequest is the payload for creating or replacing an activity log.
type ActivityLogRequest struct {
	AssistantID   string     `json:"assistant_id" validate:"required"`
	CallSessionID *string    `json:"call_session_id"`
	Activity      string     `json:"activity" validate:"required,max=150"`
	Notes         string     `json:"notes" validate:"max=500"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
}

// ManualAttendanceRequest is the payload for POST /v1/admin/attendance/manual.
type ManualAttendanceRequest struct {
	AssistantID   string     `json:"assistant_id" validate:"required"`
	SessionID     string     `json:"session_id" validate:"excluded_with=CallSessionID"`
	CallSessionID string     `json:"call_session_id"`
	Subject       string     `json:"subject" validate:"max=150"`
	Latitude      *float64   `json:"latitude" validate:"required_with=Longitude,omitempty,gte=-90,lte=90"`
	Longitude     *float64   `json:"longitude" validate:"required_with=Latitude,omitempty,gte=-180,lte=180"`
	TimeRecorded  *time.Time `json:"time_recorded"`
	DelayMinutes  *int       `json:"delay_minutes"`
	Notes         string     `json:"notes" validate:"max=500"`
}

// UpdateAttendanceRequest is the payload for PUT /v1/admin/attendance/{id}.
type UpdateAttendanceRequest struct {
	Notes        *string    `json:"notes" validate:"omitempty,max=500"`
	DelayMinutes *int       `json:"delay_minutes"`
	TimeRecorded *time.Time `json:"time_recorded"`
}
