package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction names an audited change.
type AuditAction string

const (
	AuditAttendanceRecorded AuditAction = "ATTENDANCE_RECORDED"
	AuditAttendanceManual   AuditAction = "ATTENDANCE_MANUAL"
	AuditAttendanceUpdated  AuditAction = "ATTENDANCE_UPDATED"
	AuditAttendanceDeleted  AuditAction = "ATTENDANCE_DELETED"
	AuditCenterCreated      AuditAction = "CENTER_CREATED"
	AuditCenterUpdated      AuditAction = "CENTER_UPDATED"
	AuditCenterDeleted      AuditAction = "CENTER_DELETED"
	AuditSessionCreated     AuditAction = "SESSION_CREATED"
	AuditSessionUpdated     AuditAction = "SESSION_UPDATED"
	AuditSessionDeleted     AuditAction = "SESSION_DELETED"
	AuditCallSessionCreated AuditAction = "CALL_SESSION_CREATED"
	AuditCallSessionUpdated AuditAction = "CALL_SESSION_UPDATED"
	AuditCallSessionDeleted AuditAction = "CALL_SESSION_DELETED"
	AuditCallSessionStarted AuditAction = "CALL_SESSION_STARTED"
	AuditCallSessionStopped AuditAction = "CALL_SESSION_STOPPED"
	AuditCallSessionAutoEnd AuditAction = "CALL_SESSION_AUTO_ENDED"
	AuditActivityLogCreated AuditAction = "ACTIVITY_LOG_CREATED"
	AuditActivityLogUpdated AuditAction = "ACTIVITY_LOG_UPDATED"
	AuditActivityLogDeleted AuditAction = "ACTIVITY_LOG_DELETED"
	AuditBackupRestored     AuditAction = "BACKUP_RESTORED"
	AuditBackupPurged       AuditAction = "BACKUP_PURGED"
)

// SystemActor is the actor id used for automatic changes.
const SystemActor = "system"

// AuditEntry is one audit log line.
type AuditEntry struct {
	ID         string
	ActorID    string
	Action     AuditAction
	EntityType string
	EntityID   string
	Details    map[string]any
	CreatedAt  time.Time
}

// AuditSink receives audit entries. Failures never affect the audited operation.
type AuditSink interface {
	RecordAudit(ctx context.Context, entry AuditEntry) error
}

// AuditReader lists audit entries newest first.
type AuditReader interface {
	ListAuditEntries(ctx context.Context, actorID string, limit int) ([]AuditEntry, error)
}

func (s *Service) notify(ctx context.Context, actorID string, action AuditAction, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	entry := AuditEntry{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  s.civil.Now().UTC(),
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
	defer cancel()
	if err := s.audit.RecordAudit(auditCtx, entry); err != nil {
		s.logger.Printf("audit %s %s/%s dropped: %v", action, entityType, entityID, err)
	}
}
