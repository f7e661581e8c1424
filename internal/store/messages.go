package store

import (
	"context"
	"time"

	"github.com/alaska-icy-giant/simbridge/internal/models"
)

// InsertMessageLog appends an audit row for a relayed message, whether it
// was delivered live or queued as a pending command.
func (s *Store) InsertMessageLog(ctx context.Context, fromDeviceID, toDeviceID int64, kind models.MessageKind, payload string) (*models.MessageLog, error) {
	var m models.MessageLog
	err := s.pool.QueryRow(ctx,
		`INSERT INTO message_logs (from_device_id, to_device_id, msg_kind, payload)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, from_device_id, to_device_id, msg_kind, payload, created_at`,
		fromDeviceID, toDeviceID, kind, payload,
	).Scan(&m.ID, &m.FromDeviceID, &m.ToDeviceID, &m.MsgKind, &m.Payload, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessageLogs returns message logs addressed to or from deviceID,
// newest first, capped at limit rows starting at offset. Backs the
// /history endpoint's paging.
func (s *Store) ListMessageLogs(ctx context.Context, deviceID int64, limit, offset int) ([]models.MessageLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, from_device_id, to_device_id, msg_kind, payload, created_at
		 FROM message_logs
		 WHERE from_device_id = $1 OR to_device_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, deviceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.MessageLog
	for rows.Next() {
		var m models.MessageLog
		if err := rows.Scan(&m.ID, &m.FromDeviceID, &m.ToDeviceID, &m.MsgKind, &m.Payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, m)
	}
	return logs, rows.Err()
}

// CountMessageLogs returns the total number of message logs addressed to or
// from deviceID, for the /history endpoint's total field.
func (s *Store) CountMessageLogs(ctx context.Context, deviceID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM message_logs WHERE from_device_id = $1 OR to_device_id = $1`, deviceID,
	).Scan(&count)
	return count, err
}

// PurgeMessageLogsBefore deletes message logs older than cutoff, returning
// the number of rows removed. Called by the retention sweep per the
// configured retention window.
func (s *Store) PurgeMessageLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM message_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
