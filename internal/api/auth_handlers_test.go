package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/alaska-icy-giant/simbridge/internal/auth"
)

func TestWriteAuthError_KnownError(t *testing.T) {
	w := httptest.NewRecorder()
	writeAuthError(w, nil, auth.ErrInvalidCredentials, "unused")

	if w.Code != 401 {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	errBody := body["error"].(map[string]interface{})
	if errBody["code"] != "invalid_credentials" {
		t.Fatalf("error code = %v, want invalid_credentials", errBody["code"])
	}
}

func TestWriteAuthError_Unexpected(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := httptest.NewRecorder()
	writeAuthError(w, logger, errors.New("db exploded"), "register failed")

	if w.Code != 500 {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
