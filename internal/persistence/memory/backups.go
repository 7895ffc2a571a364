package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"example.com/attendance/internal/domain"
)

// GetBackup implements domain.BackupRepository.
func (s *Store) GetBackup(_ context.Context, id string) (*domain.DeletionBackup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	backup, ok := s.backups[id]
	if !ok {
		return nil, nil
	}
	return &backup, nil
}

// ListBackups implements domain.BackupRepository.
func (s *Store) ListBackups(_ context.Context, itemType domain.BackupItemType, limit int) ([]domain.DeletionBackup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DeletionBackup, 0, len(s.backups))
	for _, backup := range s.backups {
		if itemType != "" && backup.ItemType != itemType {
			continue
		}
		out = append(out, backup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedAt.After(out[j].DeletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ClaimBackup implements domain.BackupRepository.
func (s *Store) ClaimBackup(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	backup, ok := s.backups[id]
	if !ok || !backup.CanRestore {
		return false, nil
	}
	backup.CanRestore = false
	backup.RestoredAt = &at
	s.backups[id] = backup
	return true, nil
}

// ReleaseBackup implements domain.BackupRepository.
func (s *Store) ReleaseBackup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	backup, ok := s.backups[id]
	if !ok {
		return fmt.Errorf("%w: backup %s", domain.ErrNotFound, id)
	}
	backup.CanRestore = true
	backup.RestoredAt = nil
	s.backups[id] = backup
	return nil
}

// DeleteBackup implements domain.BackupRepository.
func (s *Store) DeleteBackup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.backups[id]; !ok {
		return fmt.Errorf("%w: backup %s", domain.ErrNotFound, id)
	}
	delete(s.backups, id)
	return nil
}

// RecordAudit implements domain.AuditSink.
func (s *Store) RecordAudit(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

// ListAuditEntries implements domain.AuditReader.
func (s *Store) ListAuditEntries(_ context.Context, actorID string, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEntry, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		entry := s.audit[i]
		if actorID != "" && entry.ActorID != actorID {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
