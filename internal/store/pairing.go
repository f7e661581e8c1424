package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alaska-icy-giant/simbridge/internal/models"
)

// IssuePairingCode invalidates every outstanding unused code for the host
// device and inserts a fresh one in a single transaction, so a host never
// has two simultaneously valid codes.
func (s *Store) IssuePairingCode(ctx context.Context, ownerUserID, hostDeviceID int64, code string, expiresAt time.Time) (*models.PairingCode, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE pairing_codes SET used = true
		 WHERE host_device_id = $1 AND used = false`, hostDeviceID,
	); err != nil {
		return nil, err
	}

	var pc models.PairingCode
	err = tx.QueryRow(ctx,
		`INSERT INTO pairing_codes (owner_user_id, host_device_id, code, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, owner_user_id, host_device_id, code, expires_at, used, created_at`,
		ownerUserID, hostDeviceID, code, expiresAt,
	).Scan(&pc.ID, &pc.OwnerUserID, &pc.HostDeviceID, &pc.Code, &pc.ExpiresAt, &pc.Used, &pc.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &pc, nil
}

// GetActivePairingCode returns the unused, unexpired pairing code row
// matching code, or ErrNotFound.
func (s *Store) GetActivePairingCode(ctx context.Context, code string, now time.Time) (*models.PairingCode, error) {
	var pc models.PairingCode
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_user_id, host_device_id, code, expires_at, used, created_at
		 FROM pairing_codes
		 WHERE code = $1 AND used = false AND expires_at > $2
		 ORDER BY created_at DESC LIMIT 1`, code, now,
	).Scan(&pc.ID, &pc.OwnerUserID, &pc.HostDeviceID, &pc.Code, &pc.ExpiresAt, &pc.Used, &pc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pc, nil
}

// MarkPairingCodeUsed flags a pairing code as used without inserting a
// pairing row, used for the already_paired short-circuit.
func (s *Store) MarkPairingCodeUsed(ctx context.Context, pairingCodeID int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE pairing_codes SET used = true WHERE id = $1`, pairingCodeID)
	return err
}

// ConfirmPairing marks the pairing code used and inserts the pairing row in
// a single transaction. Returns ErrDuplicatePairing if the host and client
// are already paired.
func (s *Store) ConfirmPairing(ctx context.Context, pairingCodeID, hostDeviceID, clientDeviceID int64) (*models.Pairing, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE pairing_codes SET used = true WHERE id = $1 AND used = false`, pairingCodeID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	var p models.Pairing
	err = tx.QueryRow(ctx,
		`INSERT INTO pairings (host_device_id, client_device_id)
		 VALUES ($1, $2)
		 RETURNING id, host_device_id, client_device_id, created_at`,
		hostDeviceID, clientDeviceID,
	).Scan(&p.ID, &p.HostDeviceID, &p.ClientDeviceID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicatePairing
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPairingByClient returns the pairing for the given client device, or
// ErrNotFound if the client is unpaired.
func (s *Store) GetPairingByClient(ctx context.Context, clientDeviceID int64) (*models.Pairing, error) {
	return s.scanPairing(ctx,
		`SELECT id, host_device_id, client_device_id, created_at
		 FROM pairings WHERE client_device_id = $1`, clientDeviceID)
}

// ListPairingsByHost returns every pairing for the given host device.
func (s *Store) ListPairingsByHost(ctx context.Context, hostDeviceID int64) ([]models.Pairing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, host_device_id, client_device_id, created_at
		 FROM pairings WHERE host_device_id = $1 ORDER BY id ASC`, hostDeviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairings []models.Pairing
	for rows.Next() {
		var p models.Pairing
		if err := rows.Scan(&p.ID, &p.HostDeviceID, &p.ClientDeviceID, &p.CreatedAt); err != nil {
			return nil, err
		}
		pairings = append(pairings, p)
	}
	return pairings, rows.Err()
}

// IsPaired reports whether the given host and client devices are paired.
func (s *Store) IsPaired(ctx context.Context, hostDeviceID, clientDeviceID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pairings WHERE host_device_id = $1 AND client_device_id = $2)`,
		hostDeviceID, clientDeviceID,
	).Scan(&exists)
	return exists, err
}

func (s *Store) scanPairing(ctx context.Context, query string, arg interface{}) (*models.Pairing, error) {
	var p models.Pairing
	err := s.pool.QueryRow(ctx, query, arg).Scan(&p.ID, &p.HostDeviceID, &p.ClientDeviceID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
