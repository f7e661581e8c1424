package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHandleHealth(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q, want ok", body["status"])
	}
}

func TestCheckServiceHealth_Healthy(t *testing.T) {
	s := &Server{}
	result := s.checkServiceHealth("test", time.Second, func(ctx context.Context) error { return nil })
	if result.Status != "healthy" {
		t.Fatalf("status = %q, want healthy", result.Status)
	}
	if result.Latency == "" {
		t.Error("expected a non-empty latency string")
	}
}

func TestCheckServiceHealth_Unhealthy(t *testing.T) {
	s := &Server{}
	result := s.checkServiceHealth("database", time.Second, func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	if result.Status != "unhealthy" {
		t.Fatalf("status = %q, want unhealthy", result.Status)
	}
	if result.Error == "" {
		t.Error("expected a non-empty error message")
	}
	if result.Latency == "" {
		t.Error("expected a non-empty latency string")
	}
}
