package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alaska-icy-giant/simbridge/internal/api/apiutil"
	"github.com/alaska-icy-giant/simbridge/internal/auth"
	"github.com/alaska-icy-giant/simbridge/internal/models"
	"github.com/alaska-icy-giant/simbridge/internal/relay"
)

type sendSMSRequest struct {
	ToDeviceID int64  `json:"to_device_id"`
	Sim        int    `json:"sim"`
	To         string `json:"to"`
	Body       string `json:"body"`
}

// handleSendSMS handles POST /sms.
func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	var req sendSMSRequest
	if !apiutil.DecodeJSON(w, r, &req) {
		return
	}
	if !validateSim(w, req.Sim) ||
		!apiutil.ValidateStringLength(w, "to", req.To, 1, 30) ||
		!apiutil.ValidateStringLength(w, "body", req.Body, 1, 1600) {
		return
	}

	s.deliverCommand(w, r, req.ToDeviceID, map[string]interface{}{
		"type": "command",
		"cmd":  "SEND_SMS",
		"sim":  req.Sim,
		"to":   req.To,
		"body": req.Body,
	})
}

type makeCallRequest struct {
	ToDeviceID int64  `json:"to_device_id"`
	Sim        int    `json:"sim"`
	To         string `json:"to"`
}

// handleMakeCall handles POST /call.
func (s *Server) handleMakeCall(w http.ResponseWriter, r *http.Request) {
	var req makeCallRequest
	if !apiutil.DecodeJSON(w, r, &req) {
		return
	}
	if !validateSim(w, req.Sim) || !apiutil.ValidateStringLength(w, "to", req.To, 1, 30) {
		return
	}

	s.deliverCommand(w, r, req.ToDeviceID, map[string]interface{}{
		"type": "command",
		"cmd":  "MAKE_CALL",
		"sim":  req.Sim,
		"to":   req.To,
	})
}

// handleGetSims handles GET /sims?host_device_id=N.
func (s *Server) handleGetSims(w http.ResponseWriter, r *http.Request) {
	hostDeviceID, err := strconv.ParseInt(r.URL.Query().Get("host_device_id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid_query", "host_device_id is required")
		return
	}

	s.deliverCommand(w, r, hostDeviceID, map[string]interface{}{
		"type": "command",
		"cmd":  "GET_SIMS",
	})
}

func validateSim(w http.ResponseWriter, sim int) bool {
	if sim != 1 && sim != 2 {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid_body", "sim must be 1 or 2")
		return false
	}
	return true
}

// deliverCommand implements the authorization preamble and relay algorithm
// shared by /sms, /call, and /sims: resolve the caller's client device,
// verify the host is theirs and paired, then relay the command payload.
func (s *Server) deliverCommand(w http.ResponseWriter, r *http.Request, toDeviceID int64, payload map[string]interface{}) {
	userID, _ := auth.UserIDFromContext(r.Context())

	fromDeviceID, err := s.Relay.AuthorizeHTTPCommand(r.Context(), userID, toDeviceID)
	if err != nil {
		writeRelayError(w, s.Logger, err, "authorizing command failed")
		return
	}

	result, err := s.Relay.Deliver(r.Context(), fromDeviceID, toDeviceID, models.KindCommand, payload)
	if err != nil {
		writeRelayError(w, s.Logger, err, "delivering command failed")
		return
	}

	status := "sent"
	if result.Outcome == relay.OutcomeQueued {
		status = "queued"
	}
	apiutil.WriteJSONRaw(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"req_id": result.ReqID,
	})
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleHistory handles GET /history?device_id=N&limit=&offset=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	deviceID, err := strconv.ParseInt(r.URL.Query().Get("device_id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid_query", "device_id is required")
		return
	}

	device, err := s.Store.GetDevice(r.Context(), deviceID)
	if err != nil || device.OwnerUserID != userID {
		apiutil.WriteError(w, http.StatusForbidden, "forbidden", "device not found")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			apiutil.WriteError(w, http.StatusBadRequest, "invalid_query", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			apiutil.WriteError(w, http.StatusBadRequest, "invalid_query", "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	logs, err := s.Store.ListMessageLogs(r.Context(), deviceID, limit, offset)
	if err != nil {
		apiutil.InternalError(w, s.Logger, "listing message logs failed", err)
		return
	}
	total, err := s.Store.CountMessageLogs(r.Context(), deviceID)
	if err != nil {
		apiutil.InternalError(w, s.Logger, "counting message logs failed", err)
		return
	}

	items := make([]map[string]interface{}, len(logs))
	for i, m := range logs {
		items[i] = map[string]interface{}{
			"id":             m.ID,
			"from_device_id": m.FromDeviceID,
			"to_device_id":   m.ToDeviceID,
			"msg_kind":       m.MsgKind,
			"payload":        m.Payload,
			"created_at":     m.CreatedAt,
		}
	}

	apiutil.WriteJSONRaw(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// writeRelayError translates a *relay.HTTPError or relay.ErrDeliveryFailed
// to its HTTP status, or logs and returns 500 for anything unexpected.
func writeRelayError(w http.ResponseWriter, logger *slog.Logger, err error, logMsg string) {
	var httpErr *relay.HTTPError
	if errors.As(err, &httpErr) {
		apiutil.WriteError(w, httpErr.Status, httpErr.Code, httpErr.Message)
		return
	}
	if errors.Is(err, relay.ErrDeliveryFailed) {
		apiutil.WriteError(w, http.StatusBadGateway, "delivery_failed", "delivery to the live session failed")
		return
	}
	apiutil.InternalError(w, logger, logMsg, err)
}
