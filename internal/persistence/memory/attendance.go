package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"example.com/attendance/internal/domain"
)

// uniqueKeys mirrors the partial unique indexes on attendance_records.
func uniqueKeys(r domain.AttendanceRecord) []string {
	if r.IsDeleted {
		return nil
	}
	var keys []string
	if r.CallSessionID != nil {
		keys = append(keys, fmt.Sprintf("call|%s|%s", r.AssistantID, *r.CallSessionID))
	}
	if r.SessionID != nil {
		switch r.Source {
		case domain.SourceOneTime:
			keys = append(keys, fmt.Sprintf("one_time|%s|%s", r.AssistantID, *r.SessionID))
		case domain.SourceWeekly:
			keys = append(keys, fmt.Sprintf("weekly|%s|%s|%s", r.AssistantID, *r.SessionID, r.CivilDay))
		}
	}
	return keys
}

// conflicts reports whether candidate collides with any live record other than itself.
func (s *Store) conflicts(candidate domain.AttendanceRecord) bool {
	keys := uniqueKeys(candidate)
	if len(keys) == 0 {
		return false
	}
	for id, existing := range s.attendance {
		if id == candidate.ID {
			continue
		}
		for _, have := range uniqueKeys(existing) {
			for _, want := range keys {
				if have == want {
					return true
				}
			}
		}
	}
	return false
}

// CreateAttendance implements domain.AttendanceStore.
func (s *Store) CreateAttendance(_ context.Context, record domain.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.attendance[record.ID]; exists {
		return fmt.Errorf("%w: attendance %s exists", domain.ErrDuplicate, record.ID)
	}
	if s.conflicts(record) {
		return fmt.Errorf("%w: a live record already covers this mark", domain.ErrDuplicate)
	}
	s.attendance[record.ID] = record
	return nil
}

// FindSessionAttendance implements domain.AttendanceLookup.
func (s *Store) FindSessionAttendance(_ context.Context, assistantID, sessionID string) (*domain.AttendanceRecord, error) {
	return s.findLive(func(r domain.AttendanceRecord) bool {
		return r.AssistantID == assistantID && r.SessionID != nil && *r.SessionID == sessionID
	}), nil
}

// FindSessionAttendanceBetween implements domain.AttendanceLookup.
func (s *Store) FindSessionAttendanceBetween(_ context.Context, assistantID, sessionID string, from, to time.Time) (*domain.AttendanceRecord, error) {
	return s.findLive(func(r domain.AttendanceRecord) bool {
		return r.AssistantID == assistantID && r.SessionID != nil && *r.SessionID == sessionID &&
			!r.TimeRecorded.Before(from) && r.TimeRecorded.Before(to)
	}), nil
}

// FindCallSessionAttendance implements domain.AttendanceLookup.
func (s *Store) FindCallSessionAttendance(_ context.Context, assistantID, callSessionID string) (*domain.AttendanceRecord, error) {
	return s.findLive(func(r domain.AttendanceRecord) bool {
		return r.AssistantID == assistantID && r.CallSessionID != nil && *r.CallSessionID == callSessionID
	}), nil
}

func (s *Store) findLive(match func(domain.AttendanceRecord) bool) *domain.AttendanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.AttendanceRecord
	for _, r := range s.attendance {
		if r.IsDeleted || !match(r) {
			continue
		}
		if found == nil || r.TimeRecorded.After(found.TimeRecorded) {
			record := r
			found = &record
		}
	}
	return found
}

// GetAttendance implements domain.AttendanceRepository.
func (s *Store) GetAttendance(_ context.Context, id string) (*domain.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.attendance[id]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// UpdateAttendance implements domain.AttendanceRepository.
func (s *Store) UpdateAttendance(_ context.Context, record domain.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.attendance[record.ID]; !exists {
		return fmt.Errorf("%w: attendance %s", domain.ErrNotFound, record.ID)
	}
	if s.conflicts(record) {
		return fmt.Errorf("%w: another live record covers this mark", domain.ErrDuplicate)
	}
	s.attendance[record.ID] = record
	return nil
}

// ListAttendance implements domain.AttendanceRepository.
func (s *Store) ListAttendance(_ context.Context, filter domain.AttendanceFilter, cursor *domain.Cursor, limit int) ([]domain.AttendanceRecord, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.AttendanceRecord, 0)
	for _, r := range s.attendance {
		if !filter.IncludeDeleted && r.IsDeleted {
			continue
		}
		if filter.AssistantID != "" && r.AssistantID != filter.AssistantID {
			continue
		}
		if filter.SessionID != "" && (r.SessionID == nil || *r.SessionID != filter.SessionID) {
			continue
		}
		if filter.CallSessionID != "" && (r.CallSessionID == nil || *r.CallSessionID != filter.CallSessionID) {
			continue
		}
		if filter.Source != "" && r.Source != filter.Source {
			continue
		}
		if filter.From != nil && r.TimeRecorded.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !r.TimeRecorded.Before(*filter.To) {
			continue
		}
		if cursor != nil && !before(r, *cursor) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return before(matched[j], domain.Cursor{TimeRecorded: matched[i].TimeRecorded, ID: matched[i].ID})
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	var next *domain.Cursor
	if limit > 0 && len(matched) == limit {
		last := matched[len(matched)-1]
		next = &domain.Cursor{TimeRecorded: last.TimeRecorded, ID: last.ID}
	}
	return matched, next, nil
}

// before reports whether r sorts after the cursor position in newest-first order.
func before(r domain.AttendanceRecord, c domain.Cursor) bool {
	if r.TimeRecorded.Equal(c.TimeRecorded) {
		return r.ID < c.ID
	}
	return r.TimeRecorded.Before(c.TimeRecorded)
}

// SoftDeleteAttendance implements domain.AttendanceRepository.
func (s *Store) SoftDeleteAttendance(_ context.Context, record domain.AttendanceRecord, backup domain.DeletionBackup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.attendance[record.ID]
	if !exists || current.IsDeleted {
		return fmt.Errorf("%w: attendance %s", domain.ErrNotFound, record.ID)
	}
	s.attendance[record.ID] = record
	s.backups[backup.ID] = backup
	return nil
}

// RestoreAttendance implements domain.AttendanceRepository.
func (s *Store) RestoreAttendance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.attendance[id]
	if !exists {
		return fmt.Errorf("%w: attendance %s", domain.ErrNotFound, id)
	}
	record.IsDeleted = false
	record.DeletedBy = nil
	record.DeletedAt = nil
	record.DeletionReason = ""
	if s.conflicts(record) {
		return fmt.Errorf("%w: a newer record covers this mark", domain.ErrDuplicate)
	}
	s.attendance[id] = record
	return nil
}
