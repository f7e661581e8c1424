package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alaska-icy-giant/simbridge/internal/models"
)

// CreateUser inserts a new user. Exactly one of passwordHash or federatedID
// may be empty, never both. Returns ErrDuplicateUser if username is taken,
// ErrDuplicateFed if federatedID is taken.
func (s *Store) CreateUser(ctx context.Context, username string, passwordHash, email, federatedID *string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, email, federated_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, username, display_name, password_hash, email, federated_id, created_at`,
		username, passwordHash, email, federatedID,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Email, &u.FederatedID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "users_username_key":
				return nil, ErrDuplicateUser
			case "users_federated_id_key":
				return nil, ErrDuplicateFed
			}
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername returns the user with the given username, or ErrNotFound.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(ctx,
		`SELECT id, username, display_name, password_hash, email, federated_id, created_at
		 FROM users WHERE username = $1`, username)
}

// GetUserByID returns the user with the given id, or ErrNotFound.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(ctx,
		`SELECT id, username, display_name, password_hash, email, federated_id, created_at
		 FROM users WHERE id = $1`, id)
}

// GetUserByFederatedID returns the user with the given federated identity
// subject, or ErrNotFound.
func (s *Store) GetUserByFederatedID(ctx context.Context, federatedID string) (*models.User, error) {
	return s.scanUser(ctx,
		`SELECT id, username, display_name, password_hash, email, federated_id, created_at
		 FROM users WHERE federated_id = $1`, federatedID)
}

// GetUserByEmail returns the user with the given email, or ErrNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(ctx,
		`SELECT id, username, display_name, password_hash, email, federated_id, created_at
		 FROM users WHERE email = $1`, email)
}

// UsernameExists reports whether a user with the given username exists.
func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// AttachFederatedID attaches a federated identity subject to an existing
// user, matched by email during federated_login's second resolution step.
func (s *Store) AttachFederatedID(ctx context.Context, userID int64, federatedID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET federated_id = $1 WHERE id = $2`, federatedID, userID)
	return err
}

func (s *Store) scanUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Email, &u.FederatedID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
