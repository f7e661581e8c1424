// Package liveness implements the per-session heartbeat and the
// disconnect-time offline notification: cancel the heartbeat, persist
// last_seen_at, then tell every paired peer the device went away.
package liveness

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/alaska-icy-giant/simbridge/internal/models"
	"github.com/alaska-icy-giant/simbridge/internal/registry"
	"github.com/alaska-icy-giant/simbridge/internal/store"
)

// pingFrame is sent verbatim; clients need not reply.
var pingFrame = []byte(`{"type":"ping"}`)

// Liveness ties the Session Registry and Store together for heartbeat and
// offline-notification duties. It holds no session state of its own.
type Liveness struct {
	registry *registry.Registry
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
}

// New builds a Liveness with the given heartbeat interval.
func New(reg *registry.Registry, st *store.Store, interval time.Duration, logger *slog.Logger) *Liveness {
	return &Liveness{registry: reg, store: st, interval: interval, logger: logger}
}

// StartHeartbeat launches a background task that sends {"type":"ping"} on
// session every interval until ctx is cancelled. A send failure terminates
// the task; the session's read loop is responsible for observing the
// resulting closed channel and running cleanup.
func (l *Liveness) StartHeartbeat(ctx context.Context, session *registry.Session) {
	go func() {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := session.Send(ctx, pingFrame); err != nil {
					return
				}
			}
		}
	}()
}

// NotifyOffline runs the disconnect sequence for session: unbind it from
// the registry (ABA-safe), stamp the device's last_seen_at, then deliver a
// DEVICE_OFFLINE event to every paired peer that currently has a live
// session. Send failures to peers are ignored, matching the "best effort"
// contract for this notification.
func (l *Liveness) NotifyOffline(ctx context.Context, session *registry.Session) {
	l.registry.UnbindIf(session.DeviceID, session)

	if err := l.store.UpdateDeviceLastSeen(ctx, session.DeviceID, time.Now()); err != nil {
		l.logger.Error("updating last_seen_at failed", slog.String("error", err.Error()))
	}

	peerIDs, err := l.pairedPeerIDs(ctx, session)
	if err != nil {
		l.logger.Error("resolving paired peers for offline notification failed", slog.String("error", err.Error()))
		return
	}

	event, err := json.Marshal(map[string]interface{}{
		"type":      "event",
		"event":     "DEVICE_OFFLINE",
		"device_id": session.DeviceID,
	})
	if err != nil {
		l.logger.Error("marshaling offline event failed", slog.String("error", err.Error()))
		return
	}

	for _, peerID := range peerIDs {
		peerSession, ok := l.registry.Lookup(peerID)
		if !ok {
			continue
		}
		if err := peerSession.Send(ctx, event); err != nil {
			l.logger.Debug("offline notification send failed", slog.Int64("peer_device_id", peerID), slog.String("error", err.Error()))
		}
	}
}

// pairedPeerIDs returns the device ids on the opposite side of every
// Pairing involving session's device.
func (l *Liveness) pairedPeerIDs(ctx context.Context, session *registry.Session) ([]int64, error) {
	switch session.Role {
	case models.RoleHost:
		pairings, err := l.store.ListPairingsByHost(ctx, session.DeviceID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, len(pairings))
		for i, p := range pairings {
			ids[i] = p.ClientDeviceID
		}
		return ids, nil

	case models.RoleClient:
		pairing, err := l.store.GetPairingByClient(ctx, session.DeviceID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []int64{pairing.HostDeviceID}, nil

	default:
		return nil, nil
	}
}
