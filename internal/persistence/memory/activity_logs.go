package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"example.com/attendance/internal/domain"
)

// GetActivityLog implements domain.ActivityLogRepository.
func (s *Store) GetActivityLog(_ context.Context, id string) (*domain.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.activityLogs[id]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// CreateActivityLog implements domain.ActivityLogRepository.
func (s *Store) CreateActivityLog(_ context.Context, entry domain.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.activityLogs[entry.ID]; exists {
		return fmt.Errorf("%w: activity log %s exists", domain.ErrDuplicate, entry.ID)
	}
	if err := checkActivityLog(entry); err != nil {
		return err
	}
	s.activityLogs[entry.ID] = entry
	return nil
}

// UpdateActivityLog implements domain.ActivityLogRepository.
func (s *Store) UpdateActivityLog(_ context.Context, entry domain.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.activityLogs[entry.ID]; !exists {
		return fmt.Errorf("%w: activity log %s", domain.ErrNotFound, entry.ID)
	}
	if err := checkActivityLog(entry); err != nil {
		return err
	}
	s.activityLogs[entry.ID] = entry
	return nil
}

// checkActivityLog mirrors the activity_log_time_order check constraint.
func checkActivityLog(entry domain.ActivityLog) error {
	if entry.EndTime != nil && entry.EndTime.Before(entry.StartTime) {
		return fmt.Errorf("%w: activity log %s ends before it starts", domain.ErrValidation, entry.ID)
	}
	return nil
}

// ListActivityLogs implements domain.ActivityLogRepository.
func (s *Store) ListActivityLogs(_ context.Context, filter domain.ActivityLogFilter) ([]domain.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ActivityLog, 0, len(s.activityLogs))
	for _, entry := range s.activityLogs {
		if filter.Matches(entry) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

// DeleteActivityLog implements domain.ActivityLogRepository.
func (s *Store) DeleteActivityLog(_ context.Context, id string, backup domain.DeletionBackup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.activityLogs[id]; !exists {
		return fmt.Errorf("%w: activity log %s", domain.ErrNotFound, id)
	}
	delete(s.activityLogs, id)
	s.backups[backup.ID] = backup
	return nil
}

// RestoreActivityLog implements domain.ActivityLogRepository.
func (s *Store) RestoreActivityLog(ctx context.Context, entry domain.ActivityLog) error {
	return s.CreateActivityLog(ctx, entry)
}

// CloseActivityLogs implements domain.ActivityLogRepository.
func (s *Store) CloseActivityLogs(_ context.Context, callSessionID string, end, now time.Time) ([]domain.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeActivityLogsLocked(callSessionID, end, now), nil
}

func (s *Store) closeActivityLogsLocked(callSessionID string, end, now time.Time) []domain.ActivityLog {
	var closed []domain.ActivityLog
	for id, entry := range s.activityLogs {
		if !entry.Open() || entry.CallSessionID == nil || *entry.CallSessionID != callSessionID {
			continue
		}
		entry.Close(end)
		entry.UpdatedAt = now
		s.activityLogs[id] = entry
		closed = append(closed, entry)
	}
	return closed
}
