// Package auth — middleware.go provides HTTP middleware for extracting and
// validating Bearer tokens from the Authorization header, injecting the
// authenticated user ID into the request context for downstream handlers.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

// ContextKeyUserID is the context key for the authenticated user's id.
const ContextKeyUserID contextKey = "user_id"

// UserIDFromContext retrieves the authenticated user id from the request
// context. Returns (0, false) if no user is authenticated.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(int64)
	return v, ok
}

// RequireAuth returns middleware that validates the Bearer token and injects
// the authenticated user id into the request context. Requests without a
// valid token receive a 401 Unauthorized response. Query-parameter tokens
// are accepted too, since the bidirectional-channel upgrade endpoints cannot
// set a header.
func RequireAuth(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing_token", "a bearer token is required")
				return
			}

			userID, err := svc.VerifyToken(token)
			if err != nil {
				var authErr *AuthError
				if errors.As(err, &authErr) {
					writeAuthError(w, authErr.Status, authErr.Code, authErr.Message)
					return
				}
				writeAuthError(w, http.StatusUnauthorized, "invalid_token", "token is invalid")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken extracts the token from "Authorization: Bearer <token>" or,
// failing that, the "token" query parameter used by the session-opening
// endpoints.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}

// writeAuthError writes a JSON error response matching the API error envelope
// format. This avoids importing the api package, which would create a circular
// dependency since api imports auth.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
