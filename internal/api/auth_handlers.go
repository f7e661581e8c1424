package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alaska-icy-giant/simbridge/internal/api/apiutil"
	"github.com/alaska-icy-giant/simbridge/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister handles POST /auth/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !apiutil.DecodeJSON(w, r, &req) {
		return
	}
	if !apiutil.RequireNonEmpty(w, "username", req.Username) || !apiutil.RequireNonEmpty(w, "password", req.Password) {
		return
	}

	user, err := s.Auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeAuthError(w, s.Logger, err, "register failed")
		return
	}

	apiutil.WriteJSONRaw(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin handles POST /auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !apiutil.DecodeJSON(w, r, &req) {
		return
	}

	token, user, err := s.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeAuthError(w, s.Logger, err, "login failed")
		return
	}

	apiutil.WriteJSONRaw(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"user_id": user.ID,
	})
}

type federatedLoginRequest struct {
	IDToken string `json:"id_token"`
}

// handleFederatedLogin handles POST /auth/google.
func (s *Server) handleFederatedLogin(w http.ResponseWriter, r *http.Request) {
	var req federatedLoginRequest
	if !apiutil.DecodeJSON(w, r, &req) {
		return
	}
	if !apiutil.RequireNonEmpty(w, "id_token", req.IDToken) {
		return
	}

	token, user, err := s.Auth.FederatedLogin(r.Context(), req.IDToken)
	if err != nil {
		writeAuthError(w, s.Logger, err, "federated login failed")
		return
	}

	apiutil.WriteJSONRaw(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"user_id": user.ID,
	})
}

// writeAuthError translates an *auth.AuthError to its HTTP status, or logs
// and returns 500 for anything unexpected.
func writeAuthError(w http.ResponseWriter, logger *slog.Logger, err error, logMsg string) {
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		apiutil.WriteError(w, authErr.Status, authErr.Code, authErr.Message)
		return
	}
	apiutil.InternalError(w, logger, logMsg, err)
}
