package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BackupItemType names the entity captured in a deletion backup.
type BackupItemType string

const (
	BackupCenter      BackupItemType = "center"
	BackupSession     BackupItemType = "session"
	BackupCallSession BackupItemType = "call_session"
	BackupAttendance  BackupItemType = "attendance"
	BackupActivityLog BackupItemType = "activity_log"
)

// DeletionBackup is a snapshot taken before an entity is deleted. It can be restored once.
type DeletionBackup struct {
	ID         string
	ItemType   BackupItemType
	ItemID     string
	Snapshot   json.RawMessage
	DeletedBy  string
	Reason     string
	DeletedAt  time.Time
	CanRestore bool
	RestoredAt *time.Time
}

func newBackup(itemType BackupItemType, itemID string, item any, deletedBy, reason string, at time.Time) (DeletionBackup, error) {
	snapshot, err := json.Marshal(item)
	if err != nil {
		return DeletionBackup{}, fmt.Errorf("snapshot %s %s: %w", itemType, itemID, err)
	}
	return DeletionBackup{
		ID:         uuid.NewString(),
		ItemType:   itemType,
		ItemID:     itemID,
		Snapshot:   snapshot,
		DeletedBy:  deletedBy,
		Reason:     reason,
		DeletedAt:  at,
		CanRestore: true,
	}, nil
}
