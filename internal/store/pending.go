package store

import (
	"context"

	"github.com/alaska-icy-giant/simbridge/internal/models"
)

// InsertPendingCommand persists a command addressed to a disconnected host
// for delivery on reconnect.
func (s *Store) InsertPendingCommand(ctx context.Context, hostDeviceID, fromDeviceID int64, payload string) (*models.PendingCommand, error) {
	var p models.PendingCommand
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pending_commands (host_device_id, from_device_id, payload)
		 VALUES ($1, $2, $3)
		 RETURNING id, host_device_id, from_device_id, payload, delivered, created_at`,
		hostDeviceID, fromDeviceID, payload,
	).Scan(&p.ID, &p.HostDeviceID, &p.FromDeviceID, &p.Payload, &p.Delivered, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TakeNextPendingBatch returns up to limit undelivered commands for the
// host, oldest first, without marking them delivered. The caller marks each
// delivered individually as it succeeds in sending it down the reconnected
// session, so a send failure partway through a drain leaves the remainder
// queued.
func (s *Store) TakeNextPendingBatch(ctx context.Context, hostDeviceID int64, limit int) ([]models.PendingCommand, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, host_device_id, from_device_id, payload, delivered, created_at
		 FROM pending_commands
		 WHERE host_device_id = $1 AND delivered = false
		 ORDER BY created_at ASC, id ASC LIMIT $2`, hostDeviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commands []models.PendingCommand
	for rows.Next() {
		var p models.PendingCommand
		if err := rows.Scan(&p.ID, &p.HostDeviceID, &p.FromDeviceID, &p.Payload, &p.Delivered, &p.CreatedAt); err != nil {
			return nil, err
		}
		commands = append(commands, p)
	}
	return commands, rows.Err()
}

// MarkPendingDelivered flags a pending command as delivered so it is not
// redelivered on a future drain.
func (s *Store) MarkPendingDelivered(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE pending_commands SET delivered = true WHERE id = $1`, id)
	return err
}
