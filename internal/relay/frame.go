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

// HandleFrame processes one inbound frame on an open session: parses it as
// JSON, dispatches ping/command/event/webrtc, resolves the target device,
// stamps from_device_id, and invokes the relay algorithm. All error replies
// and the pong reply are written directly to sender's channel; HandleFrame
// itself returns only unexpected (non-protocol) errors for the caller to log.
func (e *Engine) HandleFrame(ctx context.Context, sender *registry.Session, raw []byte) error {
	var frame map[string]interface{}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return e.replyRaw(ctx, sender, map[string]interface{}{"error": "invalid JSON"})
	}

	msgType, _ := frame["type"].(string)
	switch msgType {
	case "ping":
		return e.replyRaw(ctx, sender, map[string]interface{}{"type": "pong"})
	case "command", "event", "webrtc":
		// fall through to relay below
	default:
		return e.replyRaw(ctx, sender, map[string]interface{}{"error": fmt.Sprintf("invalid message type: %s", msgType)})
	}

	targetDeviceID, resolved, err := e.resolveSessionTarget(ctx, sender, frame)
	if err != nil {
		return fmt.Errorf("relay: resolving frame target: %w", err)
	}
	if !resolved {
		// resolveSessionTarget already replied with the appropriate error.
		return nil
	}

	frame["from_device_id"] = sender.DeviceID

	result, err := e.Deliver(ctx, sender.DeviceID, targetDeviceID, models.MessageKind(msgType), frame)
	if err != nil {
		if errors.Is(err, ErrDeliveryFailed) {
			return e.replyRaw(ctx, sender, map[string]interface{}{"error": "delivery failed"})
		}
		return fmt.Errorf("relay: delivering frame: %w", err)
	}

	if result.Outcome == OutcomeOfflineClient {
		return e.replyRaw(ctx, sender, map[string]interface{}{
			"error":            "target_offline",
			"target_device_id": targetDeviceID,
			"req_id":           result.ReqID,
		})
	}

	return nil
}

// resolveSessionTarget prefers an explicit to_device_id in the frame;
// otherwise it looks up the sole Pairing of the sender by role. Replies
// directly to sender with the role-appropriate error when no pairing
// exists, returning (0, false, nil) in that case.
func (e *Engine) resolveSessionTarget(ctx context.Context, sender *registry.Session, frame map[string]interface{}) (int64, bool, error) {
	if v, ok := frame["to_device_id"]; ok {
		if f, ok := v.(float64); ok {
			return int64(f), true, nil
		}
	}

	switch sender.Role {
	case models.RoleHost:
		pairings, err := e.store.ListPairingsByHost(ctx, sender.DeviceID)
		if err != nil {
			return 0, false, err
		}
		if len(pairings) == 0 {
			return 0, false, e.replyRaw(ctx, sender, map[string]interface{}{"error": "no paired client"})
		}
		return pairings[0].ClientDeviceID, true, nil

	case models.RoleClient:
		pairing, err := e.store.GetPairingByClient(ctx, sender.DeviceID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return 0, false, e.replyRaw(ctx, sender, map[string]interface{}{"error": "no paired host"})
			}
			return 0, false, err
		}
		return pairing.HostDeviceID, true, nil

	default:
		return 0, false, fmt.Errorf("unknown sender role %q", sender.Role)
	}
}

// replyRaw marshals msg and sends it on sender's channel. Returning its
// error (rather than swallowing it) lets the caller's read loop treat a
// broken reply channel the same way it treats any other send failure.
func (e *Engine) replyRaw(ctx context.Context, sender *registry.Session, msg map[string]interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		e.logger.Error("marshaling session reply failed", slog.String("error", err.Error()))
		return nil
	}
	return sender.Send(ctx, data)
}
