package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alaska-icy-giant/simbridge/internal/models"
)

// CreateDevice inserts a new device for the given owner.
func (s *Store) CreateDevice(ctx context.Context, ownerUserID int64, name string, role models.DeviceRole, platform *string) (*models.Device, error) {
	var d models.Device
	err := s.pool.QueryRow(ctx,
		`INSERT INTO devices (owner_user_id, name, role, platform)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, owner_user_id, name, role, platform, last_seen_at, created_at`,
		ownerUserID, name, role, platform,
	).Scan(&d.ID, &d.OwnerUserID, &d.Name, &d.Role, &d.Platform, &d.LastSeenAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDevice returns the device with the given id, or ErrNotFound.
func (s *Store) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	var d models.Device
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_user_id, name, role, platform, last_seen_at, created_at
		 FROM devices WHERE id = $1`, id,
	).Scan(&d.ID, &d.OwnerUserID, &d.Name, &d.Role, &d.Platform, &d.LastSeenAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDevicesByOwner returns every device owned by the given user, ordered
// by id ascending (the order §4.E's "first client device" rule relies on).
func (s *Store) ListDevicesByOwner(ctx context.Context, ownerUserID int64) ([]models.Device, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_user_id, name, role, platform, last_seen_at, created_at
		 FROM devices WHERE owner_user_id = $1 ORDER BY id ASC`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.ID, &d.OwnerUserID, &d.Name, &d.Role, &d.Platform, &d.LastSeenAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// FirstDeviceByOwnerAndRole returns the lowest-id device of the given role
// owned by the user, or ErrNotFound. Used to resolve the HTTP path's
// from_device_id per §4.E's "first such device" rule (Open Question #1 in
// DESIGN.md: preserved verbatim, non-determinism and all).
func (s *Store) FirstDeviceByOwnerAndRole(ctx context.Context, ownerUserID int64, role models.DeviceRole) (*models.Device, error) {
	var d models.Device
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_user_id, name, role, platform, last_seen_at, created_at
		 FROM devices WHERE owner_user_id = $1 AND role = $2 ORDER BY id ASC LIMIT 1`,
		ownerUserID, role,
	).Scan(&d.ID, &d.OwnerUserID, &d.Name, &d.Role, &d.Platform, &d.LastSeenAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// UpdateDeviceLastSeen stamps the device's last_seen_at, called when a
// session ends (§4.F offline notification step 2).
func (s *Store) UpdateDeviceLastSeen(ctx context.Context, id int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE devices SET last_seen_at = $1 WHERE id = $2`, at, id)
	return err
}
