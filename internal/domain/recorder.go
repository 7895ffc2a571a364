package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// SessionCatalog reads the entities an attendance mark can target.
// Getters return nil, nil when the entity does not exist.
type SessionCatalog interface {
	GetSession(ctx context.Context, id string) (*SessionDefinition, error)
	GetCenter(ctx context.Context, id string) (*Center, error)
	GetCallSession(ctx context.Context, id string) (*CallSession, error)
}

// AttendanceStore persists attendance records. CreateAttendance returns an error
// wrapping ErrDuplicate when a storage uniqueness constraint rejects the insert.
type AttendanceStore interface {
	AttendanceLookup
	CreateAttendance(ctx context.Context, record AttendanceRecord) error
}

// MarkInput is an assistant's request to record attendance.
type MarkInput struct {
	AssistantID   string
	SessionID     string
	CallSessionID string
	Location      *Coordinate
	Notes         string
	Now           time.Time // zero means the civil clock's now
}

func (in MarkInput) validate() error {
	if strings.TrimSpace(in.AssistantID) == "" {
		return fmt.Errorf("%w: assistant id is required", ErrValidation)
	}
	hasSession := strings.TrimSpace(in.SessionID) != ""
	hasCall := strings.TrimSpace(in.CallSessionID) != ""
	if hasSession == hasCall {
		return fmt.Errorf("%w: exactly one of session_id or call_session_id is required", ErrValidation)
	}
	if hasSession && in.Location == nil {
		return fmt.Errorf("%w: location is required for session attendance", ErrValidation)
	}
	if in.Location != nil {
		if err := in.Location.Validate(); err != nil {
			return err
		}
	}
	if utf8.RuneCountInString(in.Notes) > maxNotesLength {
		return fmt.Errorf("%w: notes must be at most %d characters", ErrValidation, maxNotesLength)
	}
	return nil
}

// Recorder validates and persists attendance marks.
type Recorder struct {
	civil    *CivilTime
	resolver *ScheduleResolver
	eval     *EligibilityEvaluator
	guard    *DuplicateGuard
	geofence GeofenceChecker
	catalog  SessionCatalog
	store    AttendanceStore
}

// NewRecorder constructs a Recorder.
func NewRecorder(civil *CivilTime, catalog SessionCatalog, store AttendanceStore) *Recorder {
	return &Recorder{
		civil:    civil,
		resolver: NewScheduleResolver(civil),
		eval:     NewEligibilityEvaluator(civil),
		guard:    NewDuplicateGuard(civil, store),
		catalog:  catalog,
		store:    store,
	}
}

// Record resolves the mark target and persists a new record, failing with
// ErrNotFound, ErrOutOfRange, ErrDuplicate or ErrWindowClosed in that order.
func (r *Recorder) Record(ctx context.Context, in MarkInput) (*AttendanceRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := in.Now
	if now.IsZero() {
		now = r.civil.Now()
	}
	if in.CallSessionID != "" {
		return r.recordCallSession(ctx, in, now)
	}
	return r.recordSession(ctx, in, now)
}

func (r *Recorder) recordSession(ctx context.Context, in MarkInput, now time.Time) (*AttendanceRecord, error) {
	def, err := r.catalog.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, in.SessionID)
	}
	occurrences := r.resolver.OccurrencesOn([]SessionDefinition{*def}, now, in.AssistantID)
	if len(occurrences) == 0 {
		return nil, fmt.Errorf("%w: session %s is not scheduled for you on %s", ErrNotFound, def.ID, r.civil.CivilDate(now))
	}
	occ := occurrences[0]

	center, err := r.catalog.GetCenter(ctx, def.CenterID)
	if err != nil {
		return nil, err
	}
	if center == nil {
		return nil, fmt.Errorf("%w: center %s", ErrNotFound, def.CenterID)
	}
	if !r.geofence.IsWithinRadius(*center, *in.Location) {
		return nil, fmt.Errorf("%w: %.0fm from %s, allowed radius is %.0fm",
			ErrOutOfRange, Distance(center.Location, *in.Location), center.Name, center.RadiusM)
	}

	existing, err := r.guard.FindExisting(ctx, in.AssistantID, OccurrenceTarget(occ))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: session %s on %s", ErrDuplicate, def.ID, occ.Date)
	}
	if !r.eval.CanMark(occ, now, existing) {
		return nil, fmt.Errorf("%w: marking is open from %d minutes before until %d minutes after %s",
			ErrWindowClosed, WindowOpensBeforeMin, WindowClosesAfterMin, r.civil.In(occ.Start).Format("15:04"))
	}

	sessionID, centerID := def.ID, center.ID
	location := *in.Location
	return r.persist(ctx, AttendanceRecord{
		AssistantID:    in.AssistantID,
		Source:         occ.Source,
		SessionID:      &sessionID,
		CenterID:       &centerID,
		Location:       &location,
		SessionSubject: def.Subject,
		DelayMinutes:   max(0, r.eval.DelayMinutes(occ, now)),
		Notes:          in.Notes,
	}, now)
}

func (r *Recorder) recordCallSession(ctx context.Context, in MarkInput, now time.Time) (*AttendanceRecord, error) {
	call, err := r.catalog.GetCallSession(ctx, in.CallSessionID)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, fmt.Errorf("%w: call session %s", ErrNotFound, in.CallSessionID)
	}

	existing, err := r.guard.FindExisting(ctx, in.AssistantID, CallSessionTarget(call.ID))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: call session %s", ErrDuplicate, call.ID)
	}

	callID := call.ID
	record := AttendanceRecord{
		AssistantID:    in.AssistantID,
		Source:         SourceCallSession,
		CallSessionID:  &callID,
		SessionSubject: call.Title,
		Notes:          in.Notes,
	}
	if in.Location != nil {
		location := *in.Location
		record.Location = &location
	}
	return r.persist(ctx, record, now)
}

func (r *Recorder) persist(ctx context.Context, record AttendanceRecord, now time.Time) (*AttendanceRecord, error) {
	record.ID = uuid.NewString()
	record.TimeRecorded = now.UTC()
	record.CivilDay = r.civil.CivilDate(now)
	record.CreatedAt = now.UTC()
	record.UpdatedAt = now.UTC()
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := r.store.CreateAttendance(ctx, record); err != nil {
		return nil, err
	}
	return &record, nil
}
