package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Center radius policy, in meters.
const (
	DefaultCenterRadiusM = 30
	MinCenterRadiusM     = 1
	MaxCenterRadiusM     = 500
)

const maxSubjectLength = 150

// Center is a fixed educational site with a circular geofence.
type Center struct {
	ID        string
	Name      string
	Location  Coordinate
	RadiusM   float64
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the center invariants.
func (c Center) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: center name is required", ErrValidation)
	}
	if err := c.Location.Validate(); err != nil {
		return err
	}
	if c.RadiusM < MinCenterRadiusM || c.RadiusM > MaxCenterRadiusM {
		return fmt.Errorf("%w: radius_m must be between %d and %d", ErrValidation, MinCenterRadiusM, MaxCenterRadiusM)
	}
	return nil
}

// Recurrence is the repetition kind of a session definition.
type Recurrence string

const (
	RecurrenceOneTime Recurrence = "one_time"
	RecurrenceWeekly  Recurrence = "weekly"
)

// SessionDefinition is an admin-managed catalog entry that projects onto zero or more civil dates.
type SessionDefinition struct {
	ID          string
	CenterID    string
	AssistantID *string // nil means open to every assistant
	Subject     string
	StartTime   time.Time
	Recurrence  Recurrence
	DayOfWeek   *int // 1=Monday..7=Sunday, weekly only
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the recurrence and field invariants.
func (d SessionDefinition) Validate() error {
	if strings.TrimSpace(d.CenterID) == "" {
		return fmt.Errorf("%w: center_id is required", ErrValidation)
	}
	subject := strings.TrimSpace(d.Subject)
	if subject == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if utf8.RuneCountInString(subject) > maxSubjectLength {
		return fmt.Errorf("%w: subject must be at most %d characters", ErrValidation, maxSubjectLength)
	}
	if d.StartTime.IsZero() {
		return fmt.Errorf("%w: start_time is required", ErrValidation)
	}
	switch d.Recurrence {
	case RecurrenceOneTime:
	case RecurrenceWeekly:
		if d.DayOfWeek == nil {
			return fmt.Errorf("%w: day_of_week is required for weekly sessions", ErrValidation)
		}
		if *d.DayOfWeek < 1 || *d.DayOfWeek > 7 {
			return fmt.Errorf("%w: day_of_week must be between 1 and 7", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown recurrence %q", ErrValidation, d.Recurrence)
	}
	return nil
}

// VisibleTo reports whether the assistant may see this definition.
func (d SessionDefinition) VisibleTo(assistantID string) bool {
	return d.AssistantID == nil || *d.AssistantID == assistantID
}

// Source returns the attendance source an occurrence of d records under.
func (d SessionDefinition) Source() AttendanceSource {
	if d.Recurrence == RecurrenceWeekly {
		return SourceWeekly
	}
	return SourceOneTime
}

// SessionFilter narrows admin session listings.
type SessionFilter struct {
	CenterID    string
	AssistantID string
	Recurrence  Recurrence
}

// CallSessionStatus tracks the lifecycle of an outreach call session.
type CallSessionStatus string

const (
	CallSessionPending   CallSessionStatus = "pending"
	CallSessionActive    CallSessionStatus = "active"
	CallSessionCompleted CallSessionStatus = "completed"
)

// CallSession is an outreach session. It has no repeating occurrences.
type CallSession struct {
	ID        string
	Title     string
	StartTime *time.Time
	EndTime   *time.Time
	Status    CallSessionStatus
	StartedBy *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the call session invariants.
func (c CallSession) Validate() error {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxSubjectLength {
		return fmt.Errorf("%w: title must be at most %d characters", ErrValidation, maxSubjectLength)
	}
	if c.StartTime != nil && c.EndTime != nil && c.EndTime.Before(*c.StartTime) {
		return fmt.Errorf("%w: end_time must not precede start_time", ErrValidation)
	}
	switch c.Status {
	case CallSessionPending, CallSessionActive, CallSessionCompleted:
	default:
		return fmt.Errorf("%w: unknown call session status %q", ErrValidation, c.Status)
	}
	return nil
}
