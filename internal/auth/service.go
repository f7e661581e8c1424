// Package auth implements registration, password and federated login,
// bearer-token minting and verification, and per-key rate limiting of auth
// attempts and pairing confirmations.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"

	"github.com/alaska-icy-giant/simbridge/internal/models"
	"github.com/alaska-icy-giant/simbridge/internal/ratelimit"
	"github.com/alaska-icy-giant/simbridge/internal/store"
)

// loginWindow and loginLimit implement the shared rate limit: the 6th
// attempt within 60s of the first is rejected. The same window and limit
// apply to pairing confirmation attempts (§4.B specifies one shared policy).
const (
	loginWindow = 60 * time.Second
	loginLimit  = 5
)

// NewDefaultLimiter returns the in-memory sliding-window limiter configured
// per the shared login/pairing rate limit policy.
func NewDefaultLimiter() *ratelimit.Window {
	return ratelimit.NewWindow(loginWindow, loginLimit)
}

// Service implements registration, login, federated login, and bearer token
// lifecycle over a Store.
type Service struct {
	store    *store.Store
	limiter  ratelimit.Limiter
	verifier IdentityVerifier
	logger   *slog.Logger

	secret   []byte
	issuer   string
	tokenTTL time.Duration
}

// Config configures a Service. FederatedClientID empty disables federated
// login (FederatedLogin always returns ErrFederatedNotConfigured).
type Config struct {
	TokenSecret       string
	TokenTTL          time.Duration
	FederatedClientID string
}

// NewService builds a Service. limiter governs both login and pairing
// rate limiting (internal/pairing shares the same Limiter instance so both
// draw from one budget keyed by purpose-prefixed strings).
func NewService(st *store.Store, limiter ratelimit.Limiter, cfg Config, logger *slog.Logger) *Service {
	var verifier IdentityVerifier
	if cfg.FederatedClientID != "" {
		verifier = NewGoogleTokenInfoVerifier(cfg.FederatedClientID)
	}

	return &Service{
		store:    st,
		limiter:  limiter,
		verifier: verifier,
		logger:   logger,
		secret:   []byte(cfg.TokenSecret),
		issuer:   "simbridge-relay",
		tokenTTL: cfg.TokenTTL,
	}
}

// Register creates a new password-authenticated user. Fails with
// ErrDuplicateUsername if the username is taken.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("auth: hashing password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, &hash, nil, nil)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("auth: creating user: %w", err)
	}
	return user, nil
}

// Login rate-limits on username, verifies the password, and mints a bearer
// token on success.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	allowed, err := s.limiter.Allow(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("auth: checking rate limit: %w", err)
	}
	if !allowed {
		return "", nil, ErrRateLimited
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("auth: looking up user: %w", err)
	}

	if user.PasswordHash == nil {
		return "", nil, ErrInvalidCredentials
	}

	match, err := argon2id.ComparePasswordAndHash(password, *user.PasswordHash)
	if err != nil || !match {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.MintToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// FederatedLogin delegates verification of idToken to the configured
// IdentityVerifier, then resolves a user by a three-way match: by
// federated_id, then by email (attaching the federated_id), then by
// creating a new user.
func (s *Service) FederatedLogin(ctx context.Context, idToken string) (string, *models.User, error) {
	if s.verifier == nil {
		return "", nil, ErrFederatedNotConfigured
	}

	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return "", nil, err
	}

	user, err := s.store.GetUserByFederatedID(ctx, identity.Subject)
	switch {
	case err == nil:
		token, mintErr := s.MintToken(user.ID)
		return token, user, mintErr

	case errors.Is(err, store.ErrNotFound):
		// fall through to email / create-new resolution below

	default:
		return "", nil, fmt.Errorf("auth: looking up federated user: %w", err)
	}

	if identity.Email != "" {
		user, err = s.store.GetUserByEmail(ctx, identity.Email)
		if err == nil {
			if attachErr := s.store.AttachFederatedID(ctx, user.ID, identity.Subject); attachErr != nil {
				return "", nil, fmt.Errorf("auth: attaching federated id: %w", attachErr)
			}
			token, mintErr := s.MintToken(user.ID)
			return token, user, mintErr
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", nil, fmt.Errorf("auth: looking up user by email: %w", err)
		}
	}

	username, err := s.generateUniqueUsername(ctx, identity)
	if err != nil {
		return "", nil, err
	}

	var email *string
	if identity.Email != "" {
		email = &identity.Email
	}
	newUser, err := s.store.CreateUser(ctx, username, nil, email, &identity.Subject)
	if err != nil {
		return "", nil, fmt.Errorf("auth: creating federated user: %w", err)
	}

	token, err := s.MintToken(newUser.ID)
	return token, newUser, err
}

// generateUniqueUsername derives base from the identity's email local-part,
// or "fed_"+first 8 chars of the subject when no email is present, then
// probes base, base1, base2, ... for the first unused username.
func (s *Service) generateUniqueUsername(ctx context.Context, identity *FederatedIdentity) (string, error) {
	base := identity.Email
	if at := strings.IndexByte(base, '@'); at >= 0 {
		base = base[:at]
	}
	if base == "" {
		subj := identity.Subject
		if len(subj) > 8 {
			subj = subj[:8]
		}
		base = "fed_" + subj
	}

	candidate := base
	for i := 0; ; i++ {
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}
		exists, err := s.store.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("auth: checking username availability: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
}

// MintToken produces a bearer token carrying userID and an absolute expiry.
func (s *Service) MintToken(userID int64) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates token and returns the carried user id.
func (s *Service) VerifyToken(token string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return 0, ErrTokenInvalid
	}
	return claims.UserID, nil
}
