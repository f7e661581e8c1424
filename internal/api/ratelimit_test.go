package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alaska-icy-giant/simbridge/internal/auth"
	"github.com/alaska-icy-giant/simbridge/internal/ratelimit"
)

func newRateLimitTestServer(authedLimit, unauthLimit int) *Server {
	return &Server{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		authedHTTPLimiter: ratelimit.NewWindow(time.Minute, authedLimit),
		unauthHTTPLimiter: ratelimit.NewWindow(time.Minute, unauthLimit),
	}
}

func TestRateLimitMiddleware_UnauthenticatedByIP(t *testing.T) {
	s := newRateLimitTestServer(100, 1)
	handler := s.rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req)
	if w1.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w1.Code)
	}

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w2.Code)
	}
	if ra := w2.Header().Get("Retry-After"); ra == "" {
		t.Error("Retry-After header should be set on rate-limited response")
	}
}

func TestRateLimitMiddleware_AuthenticatedKeyedBySeparateBudget(t *testing.T) {
	s := newRateLimitTestServer(1, 1)
	handler := s.rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	unauthReq := httptest.NewRequest(http.MethodGet, "/health", nil)
	unauthReq.RemoteAddr = "10.0.0.2:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, unauthReq)
	if w.Code != http.StatusOK {
		t.Fatalf("unauthenticated request status = %d, want 200", w.Code)
	}

	ctx := context.WithValue(context.Background(), auth.ContextKeyUserID, int64(42))
	authedReq := httptest.NewRequest(http.MethodGet, "/devices", nil).WithContext(ctx)
	authedReq.RemoteAddr = "10.0.0.2:5555"

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, authedReq)
	if w2.Code != http.StatusOK {
		t.Fatalf("authenticated request sharing IP with exhausted unauth budget = %d, want 200", w2.Code)
	}
}
