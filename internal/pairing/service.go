// Package pairing implements the pairing code state machine: issuing a
// short-lived numeric code for a host device and confirming it against a
// client device, with same-owner enforcement.
package pairing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/alaska-icy-giant/simbridge/internal/models"
	"github.com/alaska-icy-giant/simbridge/internal/ratelimit"
	"github.com/alaska-icy-giant/simbridge/internal/store"
)

const (
	codeDigits  = 6
	codeTTL     = 10 * time.Minute
	codeTTLSecs = int(codeTTL / time.Second)
)

// Service implements issue_code and confirm_code.
type Service struct {
	store   *store.Store
	limiter ratelimit.Limiter
}

// NewService builds a pairing Service. limiter may be the same instance the
// auth package uses for login; keys are namespaced with a "pair:" prefix so
// the two never collide.
func NewService(st *store.Store, limiter ratelimit.Limiter) *Service {
	return &Service{store: st, limiter: limiter}
}

// Result is the outcome of IssueCode.
type Result struct {
	Code             string
	ExpiresInSeconds int
}

// IssueCode verifies hostDeviceID exists, belongs to callerUserID, and has
// role host, then atomically invalidates any prior unused code for that
// host and inserts a fresh one.
func (s *Service) IssueCode(ctx context.Context, hostDeviceID, callerUserID int64) (*Result, error) {
	device, err := s.store.GetDevice(ctx, hostDeviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("pairing: looking up device: %w", err)
	}
	if device.OwnerUserID != callerUserID || device.Role != models.RoleHost {
		return nil, ErrDeviceNotFound
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("pairing: generating code: %w", err)
	}

	_, err = s.store.IssuePairingCode(ctx, callerUserID, hostDeviceID, code, time.Now().Add(codeTTL))
	if err != nil {
		return nil, fmt.Errorf("pairing: issuing code: %w", err)
	}

	return &Result{Code: code, ExpiresInSeconds: codeTTLSecs}, nil
}

// ConfirmResult is the outcome of ConfirmCode.
type ConfirmResult struct {
	AlreadyPaired bool
	PairingID     int64
	HostDeviceID  int64
}

// ConfirmCode rate-limits on the client device, verifies the client belongs
// to the caller with role client, locates an active pairing code, enforces
// the same-owner rule, and creates (or finds) the Pairing.
func (s *Service) ConfirmCode(ctx context.Context, code string, clientDeviceID, callerUserID int64) (*ConfirmResult, error) {
	allowed, err := s.limiter.Allow(ctx, "pair:"+fmt.Sprintf("%d", clientDeviceID))
	if err != nil {
		return nil, fmt.Errorf("pairing: checking rate limit: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	client, err := s.store.GetDevice(ctx, clientDeviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("pairing: looking up client device: %w", err)
	}
	if client.OwnerUserID != callerUserID || client.Role != models.RoleClient {
		return nil, ErrDeviceNotFound
	}

	pc, err := s.store.GetActivePairingCode(ctx, code, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("pairing: looking up code: %w", err)
	}

	// Essential check: without it a client-supplied code would admit
	// cross-tenant pairing.
	if pc.OwnerUserID != callerUserID {
		return nil, ErrCrossUser
	}

	existing, err := s.store.GetPairingByClient(ctx, clientDeviceID)
	if err == nil && existing.HostDeviceID == pc.HostDeviceID {
		if markErr := s.store.MarkPairingCodeUsed(ctx, pc.ID); markErr != nil {
			return nil, fmt.Errorf("pairing: marking code used: %w", markErr)
		}
		return &ConfirmResult{AlreadyPaired: true, PairingID: existing.ID, HostDeviceID: existing.HostDeviceID}, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("pairing: checking existing pairing: %w", err)
	}

	p, err := s.store.ConfirmPairing(ctx, pc.ID, pc.HostDeviceID, clientDeviceID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicatePairing) {
			// Lost a race with a concurrent confirm of the same pair; treat
			// identically to the already_paired path above.
			pairing, lookupErr := s.store.GetPairingByClient(ctx, clientDeviceID)
			if lookupErr != nil {
				return nil, fmt.Errorf("pairing: resolving race-duplicate pairing: %w", lookupErr)
			}
			return &ConfirmResult{AlreadyPaired: true, PairingID: pairing.ID, HostDeviceID: pairing.HostDeviceID}, nil
		}
		return nil, fmt.Errorf("pairing: confirming pairing: %w", err)
	}

	return &ConfirmResult{PairingID: p.ID, HostDeviceID: p.HostDeviceID}, nil
}

// generateCode returns codeDigits cryptographically random decimal digits.
func generateCode() (string, error) {
	digits := make([]byte, codeDigits)
	for i := range digits {
		b := make([]byte, 1)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		digits[i] = '0' + b[0]%10
	}
	return string(digits), nil
}
