package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/attendance/internal/domain"
)

const backupColumns = `backup_id, item_type, item_id, snapshot, deleted_by, reason, deleted_at, can_restore, restored_at`

func scanBackup(row pgx.Row) (domain.DeletionBackup, error) {
	var (
		b        domain.DeletionBackup
		itemType string
		snapshot []byte
	)
	err := row.Scan(&b.ID, &itemType, &b.ItemID, &snapshot, &b.DeletedBy, &b.Reason, &b.DeletedAt, &b.CanRestore, &b.RestoredAt)
	b.ItemType = domain.BackupItemType(itemType)
	b.Snapshot = snapshot
	return b, err
}

func insertBackup(ctx context.Context, tx pgx.Tx, b domain.DeletionBackup) error {
	_, err := tx.Exec(ctx, `INSERT INTO deletion_backups (`+backupColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, string(b.ItemType), b.ItemID, []byte(b.Snapshot), b.DeletedBy, b.Reason, b.DeletedAt, b.CanRestore, b.RestoredAt)
	return err
}

// GetBackup returns nil when the backup does not exist.
func (r *Repository) GetBackup(ctx context.Context, id string) (*domain.DeletionBackup, error) {
	backup, err := scanBackup(r.pool.QueryRow(ctx, `SELECT `+backupColumns+` FROM deletion_backups WHERE backup_id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &backup, nil
}

// ListBackups returns backups newest first, optionally restricted to one item type.
func (r *Repository) ListBackups(ctx context.Context, itemType domain.BackupItemType, limit int) ([]domain.DeletionBackup, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+backupColumns+` FROM deletion_backups
          WHERE ($1 = '' OR item_type = $1)
          ORDER BY deleted_at DESC, backup_id
          LIMIT $2`, string(itemType), limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]domain.DeletionBackup, 0)
	for rows.Next() {
		backup, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, backup)
	}
	return out, mapError(rows.Err())
}

// ClaimBackup flips can_restore in a single conditional update so concurrent
// restores of the same backup cannot both win.
func (r *Repository) ClaimBackup(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE deletion_backups SET can_restore=FALSE, restored_at=$2 WHERE backup_id=$1 AND can_restore`, id, at)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseBackup makes a claimed backup restorable again.
func (r *Repository) ReleaseBackup(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE deletion_backups SET can_restore=TRUE, restored_at=NULL WHERE backup_id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	return affectedOne(tag, "backup", id)
}

// DeleteBackup permanently removes a backup.
func (r *Repository) DeleteBackup(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM deletion_backups WHERE backup_id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	return affectedOne(tag, "backup", id)
}
