package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alaska-icy-giant/simbridge/internal/api/apiutil"
	"github.com/alaska-icy-giant/simbridge/internal/auth"
	"github.com/alaska-icy-giant/simbridge/internal/pairing"
)

// handleIssuePairingCode handles POST /pair?host_device_id=N.
func (s *Server) handleIssuePairingCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	hostDeviceID, err := strconv.ParseInt(r.URL.Query().Get("host_device_id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid_query", "host_device_id is required")
		return
	}

	result, err := s.Pairing.IssueCode(r.Context(), hostDeviceID, userID)
	if err != nil {
		writePairingError(w, s.Logger, err, "issuing pairing code failed")
		return
	}

	apiutil.WriteJSONRaw(w, http.StatusOK, map[string]interface{}{
		"code":               result.Code,
		"expires_in_seconds": result.ExpiresInSeconds,
	})
}

type confirmPairingRequest struct {
	Code           string `json:"code"`
	ClientDeviceID int64  `json:"client_device_id"`
}

// handleConfirmPairing handles POST /pair/confirm.
func (s *Server) handleConfirmPairing(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req confirmPairingRequest
	if !apiutil.DecodeJSON(w, r, &req) {
		return
	}
	if !apiutil.RequireNonEmpty(w, "code", req.Code) {
		return
	}

	result, err := s.Pairing.ConfirmCode(r.Context(), req.Code, req.ClientDeviceID, userID)
	if err != nil {
		writePairingError(w, s.Logger, err, "confirming pairing failed")
		return
	}

	status := "paired"
	if result.AlreadyPaired {
		status = "already_paired"
	}
	apiutil.WriteJSONRaw(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"pairing_id":     result.PairingID,
		"host_device_id": result.HostDeviceID,
	})
}

// writePairingError translates a *pairing.Error to its HTTP status, or logs
// and returns 500 for anything unexpected.
func writePairingError(w http.ResponseWriter, logger *slog.Logger, err error, logMsg string) {
	var pairErr *pairing.Error
	if errors.As(err, &pairErr) {
		apiutil.WriteError(w, pairErr.Status, pairErr.Code, pairErr.Message)
		return
	}
	apiutil.InternalError(w, logger, logMsg, err)
}
