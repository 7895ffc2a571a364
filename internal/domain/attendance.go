package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxNotesLength          = 500
	maxDeletionReasonLength = 200
)

// AttendanceSource tags which uniqueness rule governs a record. It is resolved once
// when the mark target is resolved and stored with the record.
type AttendanceSource string

const (
	SourceOneTime     AttendanceSource = "one_time"
	SourceWeekly      AttendanceSource = "weekly"
	SourceCallSession AttendanceSource = "call_session"
	SourceOther       AttendanceSource = "other"
)

// Valid reports whether s is a known source.
func (s AttendanceSource) Valid() bool {
	switch s {
	case SourceOneTime, SourceWeekly, SourceCallSession, SourceOther:
		return true
	}
	return false
}

// AttendanceRecord is a single attendance mark.
type AttendanceRecord struct {
	ID             string
	AssistantID    string
	Source         AttendanceSource
	SessionID      *string
	CallSessionID  *string
	CenterID       *string
	Location       *Coordinate
	SessionSubject string
	TimeRecorded   time.Time
	CivilDay       string // civil date of TimeRecorded
	DelayMinutes   int
	Notes          string
	IsDeleted      bool
	DeletedBy      *string
	DeletedAt      *time.Time
	DeletionReason string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the structural invariants of a record.
func (r AttendanceRecord) Validate() error {
	if strings.TrimSpace(r.AssistantID) == "" {
		return fmt.Errorf("%w: assistant_id is required", ErrValidation)
	}
	if r.SessionID != nil && r.CallSessionID != nil {
		return fmt.Errorf("%w: session_id and call_session_id are mutually exclusive", ErrValidation)
	}
	switch r.Source {
	case SourceOneTime, SourceWeekly:
		if r.SessionID == nil {
			return fmt.Errorf("%w: session attendance requires session_id", ErrValidation)
		}
		if r.Location == nil || r.CenterID == nil {
			return fmt.Errorf("%w: session attendance requires location and center", ErrValidation)
		}
	case SourceCallSession:
		if r.CallSessionID == nil {
			return fmt.Errorf("%w: call session attendance requires call_session_id", ErrValidation)
		}
	case SourceOther:
		if r.SessionID != nil || r.CallSessionID != nil {
			return fmt.Errorf("%w: other attendance must not reference a session", ErrValidation)
		}
		if strings.TrimSpace(r.SessionSubject) == "" {
			return fmt.Errorf("%w: other attendance requires a subject", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown attendance source %q", ErrValidation, r.Source)
	}
	if r.Location != nil {
		if err := r.Location.Validate(); err != nil {
			return err
		}
	}
	if utf8.RuneCountInString(r.Notes) > maxNotesLength {
		return fmt.Errorf("%w: notes must be at most %d characters", ErrValidation, maxNotesLength)
	}
	if utf8.RuneCountInString(r.DeletionReason) > maxDeletionReasonLength {
		return fmt.Errorf("%w: deletion reason must be at most %d characters", ErrValidation, maxDeletionReasonLength)
	}
	if r.TimeRecorded.IsZero() {
		return fmt.Errorf("%w: time_recorded is required", ErrValidation)
	}
	return nil
}

// DelayLabel renders a signed delay for display.
func DelayLabel(minutes int) string {
	switch {
	case minutes == 0:
		return "On time"
	case minutes < 0:
		return fmt.Sprintf("Early by %d minutes", -minutes)
	default:
		return fmt.Sprintf("Late by %d minutes", minutes)
	}
}

// AttendanceFilter narrows admin attendance listings. From is inclusive and To exclusive.
type AttendanceFilter struct {
	AssistantID    string
	SessionID      string
	CallSessionID  string
	Source         AttendanceSource
	From           *time.Time
	To             *time.Time
	IncludeDeleted bool
}

// Cursor models the pagination token for attendance listings, newest first.
type Cursor struct {
	TimeRecorded time.Time
	ID           string
}
