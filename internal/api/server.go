// Package api implements the relay's HTTP and WebSocket-upgrade surface
// using the chi router. It wires the Identity, Pairing Service, Session
// Registry, Relay Engine, and Liveness components into request handlers,
// and provides the middleware chain (logging, recovery, CORS, rate limit)
// and JSON response envelope shared across them.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alaska-icy-giant/simbridge/internal/auth"
	"github.com/alaska-icy-giant/simbridge/internal/config"
	"github.com/alaska-icy-giant/simbridge/internal/liveness"
	"github.com/alaska-icy-giant/simbridge/internal/pairing"
	"github.com/alaska-icy-giant/simbridge/internal/ratelimit"
	"github.com/alaska-icy-giant/simbridge/internal/registry"
	"github.com/alaska-icy-giant/simbridge/internal/relay"
	"github.com/alaska-icy-giant/simbridge/internal/store"
)

// Server is the HTTP API server for the relay. It holds the chi router, the
// application services, and configuration.
type Server struct {
	Router *chi.Mux

	Store     *store.Store
	Auth      *auth.Service
	Pairing   *pairing.Service
	Registry  *registry.Registry
	Relay     *relay.Engine
	Liveness  *liveness.Liveness
	RateLimit ratelimit.Limiter

	Config  *config.Config
	Version string
	Logger  *slog.Logger

	authedHTTPLimiter *ratelimit.Window
	unauthHTTPLimiter *ratelimit.Window

	server *http.Server
}

// NewServer creates a new API server with all routes and middleware
// registered.
func NewServer(st *store.Store, authSvc *auth.Service, pairingSvc *pairing.Service, reg *registry.Registry, relayEngine *relay.Engine, liveSvc *liveness.Liveness, limiter ratelimit.Limiter, cfg *config.Config, logger *slog.Logger) *Server {
	s := &Server{
		Router:            chi.NewRouter(),
		Store:             st,
		Auth:              authSvc,
		Pairing:           pairingSvc,
		Registry:          reg,
		Relay:             relayEngine,
		Liveness:          liveSvc,
		RateLimit:         limiter,
		Config:            cfg,
		Logger:            logger,
		authedHTTPLimiter: ratelimit.NewWindow(httpRateWindow, authedHTTPRateLimit),
		unauthHTTPLimiter: ratelimit.NewWindow(httpRateWindow, unauthHTTPRateLimit),
	}

	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// registerMiddleware adds global middleware to the router.
func (s *Server) registerMiddleware() {
	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.RealIP)
	s.Router.Use(slogMiddleware(s.Logger))
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(corsMiddleware(s.Config.HTTP.CORSOrigins))
	s.Router.Use(middleware.Timeout(30 * time.Second))
	s.Router.Use(maxBodySize(1 << 20))
	s.Router.Use(s.rateLimitMiddleware)
}

// registerRoutes mounts every endpoint named in the external interfaces
// table: public auth endpoints, authenticated REST endpoints, and the two
// bidirectional-channel upgrade endpoints.
func (s *Server) registerRoutes() {
	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/health/deep", s.handleHealthDeep)

	s.Router.Post("/auth/register", s.handleRegister)
	s.Router.Post("/auth/login", s.handleLogin)
	s.Router.Post("/auth/google", s.handleFederatedLogin)

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(s.Auth))

		r.Post("/devices", s.handleCreateDevice)
		r.Get("/devices", s.handleListDevices)

		r.Post("/pair", s.handleIssuePairingCode)
		r.Post("/pair/confirm", s.handleConfirmPairing)

		r.Post("/sms", s.handleSendSMS)
		r.Post("/call", s.handleMakeCall)
		r.Get("/sims", s.handleGetSims)
		r.Get("/history", s.handleHistory)
	})

	// Session-opening endpoints accept the token as a query parameter, so
	// RequireAuth's query-fallback extraction covers them without a
	// separate middleware branch.
	s.Router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(s.Auth))

		r.Get("/ws/host/{device_id}", s.handleHostSession)
		r.Get("/ws/client/{device_id}", s.handleClientSession)
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.Config.HTTP.Listen,
		Handler:      s.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.Logger.Info("HTTP server starting", slog.String("listen", s.Config.HTTP.Listen))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// slogMiddleware returns a chi middleware that logs HTTP requests using slog.
func slogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", r.RemoteAddr),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			}
			if uid, ok := auth.UserIDFromContext(r.Context()); ok {
				attrs = append(attrs, slog.Int64("user_id", uid))
			}
			logger.LogAttrs(r.Context(), slog.LevelInfo, "http request", attrs...)
		})
	}
}

// maxBodySize limits the request body to the given number of bytes.
func maxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware returns a chi middleware that sets CORS headers for the
// given allowed origins.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed := false
			for _, o := range origins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
				isWildcard := len(origins) == 1 && origins[0] == "*"
				if !isWildcard {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP from the request. Chi's RealIP middleware
// already sets r.RemoteAddr from trusted proxy headers.
func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return host
}
