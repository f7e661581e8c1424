package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/alaska-icy-giant/simbridge/internal/relay"
)

func TestValidateSim(t *testing.T) {
	tests := []struct {
		sim  int
		want bool
	}{
		{1, true},
		{2, true},
		{0, false},
		{3, false},
		{-1, false},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		if got := validateSim(w, tc.sim); got != tc.want {
			t.Errorf("validateSim(%d) = %v, want %v", tc.sim, got, tc.want)
		}
	}
}

func TestWriteRelayError_HTTPError(t *testing.T) {
	w := httptest.NewRecorder()
	writeRelayError(w, nil, relay.ErrHostNotYours, "unused")

	if w.Code != 403 {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	errBody, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("response missing error envelope: %v", body)
	}
	if errBody["code"] != "host_not_yours" {
		t.Fatalf("error code = %v, want host_not_yours", errBody["code"])
	}
}

func TestWriteRelayError_DeliveryFailed(t *testing.T) {
	w := httptest.NewRecorder()
	writeRelayError(w, nil, relay.ErrDeliveryFailed, "unused")

	if w.Code != 502 {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestWriteRelayError_Unexpected(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := httptest.NewRecorder()
	writeRelayError(w, logger, errors.New("boom"), "delivering command failed")

	if w.Code != 500 {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
