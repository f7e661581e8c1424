package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/alaska-icy-giant/simbridge/internal/auth"
	"github.com/alaska-icy-giant/simbridge/internal/models"
	"github.com/alaska-icy-giant/simbridge/internal/registry"
)

// handleHostSession handles GET /ws/host/{device_id}?token=…, opening a
// session for a host device.
func (s *Server) handleHostSession(w http.ResponseWriter, r *http.Request) {
	s.openSession(w, r, models.RoleHost)
}

// handleClientSession handles GET /ws/client/{device_id}?token=…, opening a
// session for a client device.
func (s *Server) handleClientSession(w http.ResponseWriter, r *http.Request) {
	s.openSession(w, r, models.RoleClient)
}

// openSession re-checks device ownership and role against the URL path
// segment, accepts the WebSocket upgrade, binds the session (evicting any
// prior one), sends the connected greeting, drains queued commands for a
// reconnecting host, starts the heartbeat, and runs the read loop until the
// channel closes.
func (s *Server) openSession(w http.ResponseWriter, r *http.Request, role models.DeviceRole) {
	userID, _ := auth.UserIDFromContext(r.Context())

	deviceID, err := strconv.ParseInt(chi.URLParam(r, "device_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid device_id", http.StatusBadRequest)
		return
	}

	device, err := s.Store.GetDevice(r.Context(), deviceID)
	if err != nil || device.OwnerUserID != userID || device.Role != role {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.Logger.Error("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := registry.NewSession(deviceID, role, conn, cancel)

	if prev := s.Registry.Bind(deviceID, session); prev != nil {
		prev.Close(websocket.StatusPolicyViolation, "Replaced by new connection")
	}

	greeting, _ := json.Marshal(map[string]interface{}{"type": "connected", "device_id": deviceID})
	if err := session.Send(ctx, greeting); err != nil {
		session.Close(websocket.StatusInternalError, "")
		s.Liveness.NotifyOffline(context.Background(), session)
		return
	}

	if role == models.RoleHost {
		if err := s.Relay.DrainPending(ctx, session, deviceID); err != nil {
			s.Logger.Error("draining pending commands failed", slog.Int64("device_id", deviceID), slog.String("error", err.Error()))
		}
	}

	s.Liveness.StartHeartbeat(ctx, session)

	// The request context carries the router's 30s request timeout; detach
	// from it so the session lives until its channel closes.
	s.readLoop(context.WithoutCancel(r.Context()), session)

	session.Close(websocket.StatusNormalClosure, "")
	s.Liveness.NotifyOffline(context.Background(), session)
}

// readLoop dispatches every inbound frame to the relay engine until the
// connection errors or closes.
func (s *Server) readLoop(ctx context.Context, session *registry.Session) {
	for {
		_, data, err := session.Read(ctx)
		if err != nil {
			return
		}
		if err := s.Relay.HandleFrame(ctx, session, data); err != nil {
			s.Logger.Error("handling frame failed", slog.Int64("device_id", session.DeviceID), slog.String("error", err.Error()))
		}
	}
}
