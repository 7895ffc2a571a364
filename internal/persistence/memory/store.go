// Package memory provides an in-process repository for tests and local development.
// It enforces the same uniqueness and reference rules as the Postgres schema.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"example.com/attendance/internal/domain"
)

// Store keeps all entities in maps guarded by a single mutex.
type Store struct {
	mu           sync.RWMutex
	centers      map[string]domain.Center
	sessions     map[string]domain.SessionDefinition
	callSessions map[string]domain.CallSession
	activityLogs map[string]domain.ActivityLog
	attendance   map[string]domain.AttendanceRecord
	backups      map[string]domain.DeletionBackup
	audit        []domain.AuditEntry
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		centers:      make(map[string]domain.Center),
		sessions:     make(map[string]domain.SessionDefinition),
		callSessions: make(map[string]domain.CallSession),
		activityLogs: make(map[string]domain.ActivityLog),
		attendance:   make(map[string]domain.AttendanceRecord),
		backups:      make(map[string]domain.DeletionBackup),
	}
}

var _ domain.Repository = (*Store)(nil)
var _ domain.AuditSink = (*Store)(nil)
var _ domain.AuditReader = (*Store)(nil)

// GetCenter implements domain.SessionCatalog.
func (s *Store) GetCenter(_ context.Context, id string) (*domain.Center, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	center, ok := s.centers[id]
	if !ok {
		return nil, nil
	}
	return &center, nil
}

// CreateCenter implements domain.CenterRepository.
func (s *Store) CreateCenter(_ context.Context, center domain.Center) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.centers[center.ID]; exists {
		return fmt.Errorf("%w: center %s exists", domain.ErrDuplicate, center.ID)
	}
	s.centers[center.ID] = center
	return nil
}

// UpdateCenter implements domain.CenterRepository.
func (s *Store) UpdateCenter(_ context.Context, center domain.Center) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.centers[center.ID]; !exists {
		return fmt.Errorf("%w: center %s", domain.ErrNotFound, center.ID)
	}
	s.centers[center.ID] = center
	return nil
}

// ListCenters implements domain.CenterRepository.
func (s *Store) ListCenters(_ context.Context) ([]domain.Center, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Center, 0, len(s.centers))
	for _, center := range s.centers {
		out = append(out, center)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteCenter implements domain.CenterRepository.
func (s *Store) DeleteCenter(_ context.Context, id string, backup domain.DeletionBackup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.centers[id]; !exists {
		return fmt.Errorf("%w: center %s", domain.ErrNotFound, id)
	}
	for _, def := range s.sessions {
		if def.CenterID == id {
			return fmt.Errorf("%w: center %s is still referenced by sessions", domain.ErrValidation, id)
		}
	}
	delete(s.centers, id)
	s.backups[backup.ID] = backup
	return nil
}

// RestoreCenter implements domain.CenterRepository.
func (s *Store) RestoreCenter(ctx context.Context, center domain.Center) error {
	return s.CreateCenter(ctx, center)
}

// GetSession implements domain.SessionCatalog.
func (s *Store) GetSession(_ context.Context, id string) (*domain.SessionDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &def, nil
}

// CreateSession implements domain.SessionRepository.
func (s *Store) CreateSession(_ context.Context, def domain.SessionDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[def.ID]; exists {
		return fmt.Errorf("%w: session %s exists", domain.ErrDuplicate, def.ID)
	}
	if _, ok := s.centers[def.CenterID]; !ok {
		return fmt.Errorf("%w: center %s does not exist", domain.ErrValidation, def.CenterID)
	}
	s.sessions[def.ID] = def
	return nil
}

// UpdateSession implements domain.SessionRepository.
func (s *Store) UpdateSession(_ context.Context, def domain.SessionDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[def.ID]; !exists {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, def.ID)
	}
	if _, ok := s.centers[def.CenterID]; !ok {
		return fmt.Errorf("%w: center %s does not exist", domain.ErrValidation, def.CenterID)
	}
	s.sessions[def.ID] = def
	return nil
}

// ListSessions implements domain.SessionRepository.
func (s *Store) ListSessions(_ context.Context, filter domain.SessionFilter) ([]domain.SessionDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SessionDefinition, 0, len(s.sessions))
	for _, def := range s.sessions {
		if filter.CenterID != "" && def.CenterID != filter.CenterID {
			continue
		}
		if filter.AssistantID != "" && (def.AssistantID == nil || *def.AssistantID != filter.AssistantID) {
			continue
		}
		if filter.Recurrence != "" && def.Recurrence != filter.Recurrence {
			continue
		}
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// ListSessionsForDay implements domain.SessionRepository.
func (s *Store) ListSessionsForDay(_ context.Context, assistantID string, from, to time.Time, dayOfWeek int) ([]domain.SessionDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SessionDefinition, 0)
	for _, def := range s.sessions {
		if !def.VisibleTo(assistantID) {
			continue
		}
		switch def.Recurrence {
		case domain.RecurrenceOneTime:
			if def.StartTime.Before(from) || !def.StartTime.Before(to) {
				continue
			}
		case domain.RecurrenceWeekly:
			if !def.IsActive || def.DayOfWeek == nil || *def.DayOfWeek != dayOfWeek {
				continue
			}
		}
		out = append(out, def)
	}
	return out, nil
}

// DeleteSession implements domain.SessionRepository.
func (s *Store) DeleteSession(_ context.Context, id string, backup domain.DeletionBackup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; !exists {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	delete(s.sessions, id)
	s.backups[backup.ID] = backup
	return nil
}

// RestoreSession implements domain.SessionRepository.
func (s *Store) RestoreSession(ctx context.Context, def domain.SessionDefinition) error {
	return s.CreateSession(ctx, def)
}

// GetCallSession implements domain.SessionCatalog.
func (s *Store) GetCallSession(_ context.Context, id string) (*domain.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	call, ok := s.callSessions[id]
	if !ok {
		return nil, nil
	}
	return &call, nil
}

// CreateCallSession implements domain.CallSessionRepository.
func (s *Store) CreateCallSession(_ context.Context, call domain.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.callSessions[call.ID]; exists {
		return fmt.Errorf("%w: call session %s exists", domain.ErrDuplicate, call.ID)
	}
	if err := checkCallSessionOrder(call); err != nil {
		return err
	}
	s.callSessions[call.ID] = call
	return nil
}

// UpdateCallSession implements domain.CallSessionRepository.
func (s *Store) UpdateCallSession(_ context.Context, call domain.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.callSessions[call.ID]; !exists {
		return fmt.Errorf("%w: call session %s", domain.ErrNotFound, call.ID)
	}
	if err := checkCallSessionOrder(call); err != nil {
		return err
	}
	s.callSessions[call.ID] = call
	return nil
}

// checkCallSessionOrder mirrors the call_session_time_order check constraint.
func checkCallSessionOrder(call domain.CallSession) error {
	if call.StartTime != nil && call.EndTime != nil && call.EndTime.Before(*call.StartTime) {
		return fmt.Errorf("%w: call session %s ends before it starts", domain.ErrValidation, call.ID)
	}
	return nil
}

// ListCallSessions implements domain.CallSessionRepository.
func (s *Store) ListCallSessions(_ context.Context) ([]domain.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CallSession, 0, len(s.callSessions))
	for _, call := range s.callSessions {
		out = append(out, call)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteCallSession implements domain.CallSessionRepository.
func (s *Store) DeleteCallSession(_ context.Context, id string, backup domain.DeletionBackup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.callSessions[id]; !exists {
		return fmt.Errorf("%w: call session %s", domain.ErrNotFound, id)
	}
	delete(s.callSessions, id)
	s.backups[backup.ID] = backup
	return nil
}

// RestoreCallSession implements domain.CallSessionRepository.
func (s *Store) RestoreCallSession(ctx context.Context, call domain.CallSession) error {
	return s.CreateCallSession(ctx, call)
}

// EndExpiredCallSessions implements domain.CallSessionRepository.
func (s *Store) EndExpiredCallSessions(_ context.Context, now time.Time) ([]domain.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ended []domain.CallSession
	for id, call := range s.callSessions {
		if call.Status != domain.CallSessionActive || call.EndTime == nil || call.EndTime.After(now) {
			continue
		}
		call.Status = domain.CallSessionCompleted
		call.UpdatedAt = now
		s.callSessions[id] = call
		s.closeActivityLogsLocked(id, *call.EndTime, now)
		ended = append(ended, call)
	}
	return ended, nil
}
