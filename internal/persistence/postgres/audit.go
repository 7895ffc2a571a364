package postgres

import (
	"context"
	"encoding/json"

	"example.com/attendance/internal/domain"
)

// RecordAudit appends an audit entry.
func (r *Repository) RecordAudit(ctx context.Context, entry domain.AuditEntry) error {
	var details []byte
	if entry.Details != nil {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return err
		}
		details = encoded
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (audit_id, actor_id, action, entity_type, entity_id, details, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.ID, entry.ActorID, string(entry.Action), entry.EntityType, entry.EntityID, details, entry.CreatedAt)
	return mapError(err)
}

// ListAuditEntries returns entries newest first, optionally for one actor.
func (r *Repository) ListAuditEntries(ctx context.Context, actorID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT audit_id, actor_id, action, entity_type, entity_id, details, created_at
           FROM audit_logs
          WHERE ($1 = '' OR actor_id = $1)
          ORDER BY created_at DESC, audit_id
          LIMIT $2`, actorID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			entry   domain.AuditEntry
			action  string
			details []byte
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &action, &entry.EntityType, &entry.EntityID, &details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = domain.AuditAction(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, mapError(rows.Err())
}
