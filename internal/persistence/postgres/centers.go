package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"example.com/attendance/internal/domain"
)

const centerColumns = `center_id, name, latitude, longitude, radius_m, address, created_at, updated_at`

func scanCenter(row pgx.Row) (domain.Center, error) {
	var c domain.Center
	err := row.Scan(&c.ID, &c.Name, &c.Location.Latitude, &c.Location.Longitude, &c.RadiusM, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetCenter returns nil when the center does not exist.
func (r *Repository) GetCenter(ctx context.Context, id string) (*domain.Center, error) {
	center, err := scanCenter(r.pool.QueryRow(ctx, `SELECT `+centerColumns+` FROM centers WHERE center_id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &center, nil
}

// CreateCenter inserts a center.
func (r *Repository) CreateCenter(ctx context.Context, center domain.Center) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return insertCenter(ctx, tx, center)
	})
}

func insertCenter(ctx context.Context, tx pgx.Tx, c domain.Center) error {
	_, err := tx.Exec(ctx, `INSERT INTO centers (`+centerColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.Name, c.Location.Latitude, c.Location.Longitude, c.RadiusM, c.Address, c.CreatedAt, c.UpdatedAt)
	return err
}

// UpdateCenter replaces a center's attributes.
func (r *Repository) UpdateCenter(ctx context.Context, c domain.Center) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE centers SET name=$2, latitude=$3, longitude=$4, radius_m=$5, address=$6, updated_at=$7 WHERE center_id=$1`,
			c.ID, c.Name, c.Location.Latitude, c.Location.Longitude, c.RadiusM, c.Address, c.UpdatedAt)
		if err != nil {
			return err
		}
		return affectedOne(tag, "center", c.ID)
	})
}

// ListCenters returns every center ordered by name.
func (r *Repository) ListCenters(ctx context.Context) ([]domain.Center, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+centerColumns+` FROM centers ORDER BY name, center_id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	centers := make([]domain.Center, 0)
	for rows.Next() {
		center, err := scanCenter(rows)
		if err != nil {
			return nil, err
		}
		centers = append(centers, center)
	}
	return centers, mapError(rows.Err())
}

// DeleteCenter removes a center and stores its backup in the same transaction.
// Centers still referenced by sessions are rejected by the foreign key.
func (r *Repository) DeleteCenter(ctx context.Context, id string, backup domain.DeletionBackup) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM centers WHERE center_id=$1`, id)
		if err != nil {
			return err
		}
		if err := affectedOne(tag, "center", id); err != nil {
			return err
		}
		return insertBackup(ctx, tx, backup)
	})
}

// RestoreCenter re-inserts a center from its snapshot.
func (r *Repository) RestoreCenter(ctx context.Context, center domain.Center) error {
	return r.CreateCenter(ctx, center)
}
