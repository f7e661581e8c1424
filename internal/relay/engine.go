// Package relay implements the message relay engine: resolving a target
// device, authorizing the sender, logging the exchange, and either
// delivering live through the Session Registry or durably queueing for a
// disconnected host. It is the critical path invoked both by the HTTP
// command endpoints and by every inbound frame on an open session.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alaska-icy-giant/simbridge/internal/models"
	"github.com/alaska-icy-giant/simbridge/internal/registry"
	"github.com/alaska-icy-giant/simbridge/internal/store"
)

// Engine implements the relay algorithm over a Store and a Session Registry.
// It holds no state of its own.
type Engine struct {
	store    *store.Store
	registry *registry.Registry
	logger   *slog.Logger
}

// New builds an Engine.
func New(st *store.Store, reg *registry.Registry, logger *slog.Logger) *Engine {
	return &Engine{store: st, registry: reg, logger: logger}
}

// Outcome classifies how Deliver resolved a message.
type Outcome int

const (
	// OutcomeSent: a live session was found and the send succeeded.
	OutcomeSent Outcome = iota
	// OutcomeQueued: no live session; the target is a host, so the message
	// was persisted as a PendingCommand.
	OutcomeQueued
	// OutcomeOfflineClient: no live session and the target is a client.
	// Only reachable from the session-driven path (HTTP targets are always
	// hosts); the caller is expected to notify the sender directly.
	OutcomeOfflineClient
)

// DeliverResult is returned by Deliver.
type DeliverResult struct {
	Outcome Outcome
	ReqID   string
}

// Deliver implements the relay algorithm shared by both entry points:
// stamp/ensure req_id, look up the live session, log the exchange, then
// send live, queue for an offline host, or report an offline client.
func (e *Engine) Deliver(ctx context.Context, fromDeviceID, targetDeviceID int64, kind models.MessageKind, payload map[string]interface{}) (*DeliverResult, error) {
	reqID := ensureReqID(payload)

	session, online := e.registry.Lookup(targetDeviceID)

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("relay: serializing payload: %w", err)
	}

	// Logging failures never fail the call; swallow and report locally.
	if _, logErr := e.store.InsertMessageLog(ctx, fromDeviceID, targetDeviceID, kind, string(raw)); logErr != nil {
		e.logger.Error("message log insert failed", slog.String("error", logErr.Error()))
	}

	if online {
		if err := session.Send(ctx, raw); err != nil {
			return nil, ErrDeliveryFailed
		}
		return &DeliverResult{Outcome: OutcomeSent, ReqID: reqID}, nil
	}

	target, err := e.store.GetDevice(ctx, targetDeviceID)
	if err != nil {
		return nil, fmt.Errorf("relay: looking up target device: %w", err)
	}

	if target.Role == models.RoleHost {
		if _, err := e.store.InsertPendingCommand(ctx, targetDeviceID, fromDeviceID, string(raw)); err != nil {
			return nil, fmt.Errorf("relay: queueing pending command: %w", err)
		}
		return &DeliverResult{Outcome: OutcomeQueued, ReqID: reqID}, nil
	}

	return &DeliverResult{Outcome: OutcomeOfflineClient, ReqID: reqID}, nil
}

// AuthorizeHTTPCommand implements the authorization preamble for the HTTP
// command endpoints (send_sms, make_call, get_sims). It picks the caller's
// first client device (by id) as the attributed sender — the
// non-deterministic-if-multiple-client-devices behavior is preserved on
// purpose; see DESIGN.md's Open Question decision #1.
func (e *Engine) AuthorizeHTTPCommand(ctx context.Context, callerUserID, toDeviceID int64) (fromDeviceID int64, err error) {
	client, err := e.store.FirstDeviceByOwnerAndRole(ctx, callerUserID, models.RoleClient)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrNoClientDevice
		}
		return 0, fmt.Errorf("relay: resolving caller's client device: %w", err)
	}

	host, err := e.store.GetDevice(ctx, toDeviceID)
	if err != nil || host.OwnerUserID != callerUserID || host.Role != models.RoleHost {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("relay: looking up host device: %w", err)
		}
		return 0, ErrHostNotYours
	}

	paired, err := e.store.IsPaired(ctx, host.ID, client.ID)
	if err != nil {
		return 0, fmt.Errorf("relay: checking pairing: %w", err)
	}
	if !paired {
		return 0, ErrNotPaired
	}

	return client.ID, nil
}

// DrainPending delivers every undelivered PendingCommand for hostDeviceID
// in ascending created_at order over session, marking each delivered as it
// succeeds. A send failure stops the drain; the remainder stays queued for
// the next reconnect.
func (e *Engine) DrainPending(ctx context.Context, session *registry.Session, hostDeviceID int64) error {
	const batchSize = 500
	for {
		batch, err := e.store.TakeNextPendingBatch(ctx, hostDeviceID, batchSize)
		if err != nil {
			return fmt.Errorf("relay: loading pending batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		for _, cmd := range batch {
			if err := session.Send(ctx, []byte(cmd.Payload)); err != nil {
				return fmt.Errorf("relay: draining pending command %d: %w", cmd.ID, err)
			}
			if err := e.store.MarkPendingDelivered(ctx, cmd.ID); err != nil {
				return fmt.Errorf("relay: marking pending command %d delivered: %w", cmd.ID, err)
			}
		}

		if len(batch) < batchSize {
			return nil
		}
	}
}

// ensureReqID reads payload["req_id"] if present and non-empty, otherwise
// generates and stores a fresh one. Returns the req_id either way.
func ensureReqID(payload map[string]interface{}) string {
	if v, ok := payload["req_id"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	reqID := models.NewULID().String()
	payload["req_id"] = reqID
	return reqID
}
