package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alaska-icy-giant/simbridge/internal/api/apiutil"
	"github.com/alaska-icy-giant/simbridge/internal/auth"
)

// Global per-key HTTP request tiers, separate from the login/pairing
// attempt limiter in s.RateLimit (see internal/auth's NewDefaultLimiter).
// Requests whose context carries a user id get a generous budget keyed by
// that id; all others share a tighter one keyed by IP.
const (
	httpRateWindow      = 1 * time.Minute
	authedHTTPRateLimit = 600
	unauthHTTPRateLimit = 120
)

// rateLimitMiddleware enforces the global per-IP/per-user HTTP request
// budget. NewServer installs it as router-wide middleware, which runs ahead
// of RequireAuth, so every routed request is keyed by IP against the
// unauthenticated budget; the per-user budget applies only when a user id is
// already in the request context on entry.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			limiter = s.unauthHTTPLimiter
			key     = clientIP(r)
		)
		if userID, ok := auth.UserIDFromContext(r.Context()); ok {
			limiter = s.authedHTTPLimiter
			key = strconv.FormatInt(userID, 10)
		}

		allowed, err := limiter.Allow(r.Context(), key)
		if err != nil {
			s.Logger.Error("http rate limit check failed", slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(httpRateWindow.Seconds())))
			apiutil.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
			return
		}

		next.ServeHTTP(w, r)
	})
}
