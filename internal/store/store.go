// Package store implements transactional persistence for users, devices,
// pairing codes, pairings, message logs, and pending commands over
// PostgreSQL via pgx. It holds no session state; the Session Registry
// (internal/registry) is the sole owner of in-memory connection state.
package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors returned by Store operations. Callers translate these to
// HTTP status codes at the API boundary; nothing below this package does.
var (
	ErrNotFound         = errors.New("store: not found")
	ErrDuplicateUser    = errors.New("store: username already exists")
	ErrDuplicateFed     = errors.New("store: federated id already exists")
	ErrDuplicatePairing = errors.New("store: pairing already exists")
)

// Store wraps a pgx connection pool. Every exported method opens and closes
// its own transaction or query; nothing here holds a connection across
// calls, so a fresh database session backs every inbound frame or request.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New returns a Store backed by the given pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Pool exposes the underlying pool for health checks and tests.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// HealthCheck verifies the database connection is alive.
func (s *Store) HealthCheck(ctx context.Context) error {
	var result int
	return s.pool.QueryRow(ctx, "SELECT 1").Scan(&result)
}
