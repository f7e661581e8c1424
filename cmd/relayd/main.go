// Package main is the CLI entrypoint for the relay server. It provides
// subcommands for running the server (serve), managing database migrations
// (migrate), and printing version information (version). The serve command
// loads configuration, connects to PostgreSQL, purges expired message logs,
// wires the Identity/Pairing/Registry/Relay/Liveness components, starts the
// HTTP and bidirectional-channel API surface, and handles graceful shutdown
// on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alaska-icy-giant/simbridge/internal/api"
	"github.com/alaska-icy-giant/simbridge/internal/auth"
	"github.com/alaska-icy-giant/simbridge/internal/config"
	"github.com/alaska-icy-giant/simbridge/internal/database"
	"github.com/alaska-icy-giant/simbridge/internal/liveness"
	"github.com/alaska-icy-giant/simbridge/internal/pairing"
	"github.com/alaska-icy-giant/simbridge/internal/ratelimit"
	"github.com/alaska-icy-giant/simbridge/internal/registry"
	"github.com/alaska-icy-giant/simbridge/internal/relay"
	"github.com/alaska-icy-giant/simbridge/internal/store"
)

// Build-time variables set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "migrate":
		if err := runMigrate(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		runVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// printUsage prints the CLI usage information.
func printUsage() {
	fmt.Println("simbridge — SMS/call relay server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  relayd <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the relay server")
	fmt.Println("  migrate   Run database migrations")
	fmt.Println("  version   Print version information")
	fmt.Println("  help      Show this help message")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  Config file:  relay.toml (or set RELAY_CONFIG_PATH)")
	fmt.Println("  Env prefix:   RELAY_ (e.g. RELAY_DATABASE_URL)")
}

// runServe starts the full relay server: loads config, connects to
// PostgreSQL, runs migrations, purges stale message logs, wires every
// component, starts the HTTP API server, and handles graceful shutdown on
// SIGINT/SIGTERM.
func runServe() error {
	logger := setupLogger("info", "json")

	logger.Info("starting relay server",
		slog.String("version", version),
		slog.String("commit", commit),
	)

	cfgPath := configPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger = setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", slog.String("path", cfgPath))

	ctx := context.Background()

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConnections, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := database.MigrateUp(cfg.Database.URL, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	st := store.New(db.Pool, logger)

	cutoff := time.Now().AddDate(0, 0, -cfg.Retention.Days)
	purged, err := st.PurgeMessageLogsBefore(ctx, cutoff)
	if err != nil {
		logger.Error("purging old message logs failed", slog.String("error", err.Error()))
	} else if purged > 0 {
		logger.Info("purged old message logs", slog.Int64("rows", purged), slog.Int("retention_days", cfg.Retention.Days))
	}

	limiter, err := buildLimiter(cfg, logger)
	if err != nil {
		return fmt.Errorf("building rate limiter: %w", err)
	}

	tokenTTL, err := cfg.Auth.TokenTTLParsed()
	if err != nil {
		return fmt.Errorf("parsing token ttl: %w", err)
	}

	authSvc := auth.NewService(st, limiter, auth.Config{
		TokenSecret:       cfg.Auth.TokenSecret,
		TokenTTL:          tokenTTL,
		FederatedClientID: cfg.Auth.FederatedClientID,
	}, logger)

	pairingSvc := pairing.NewService(st, limiter)

	reg := registry.New()
	relayEngine := relay.New(st, reg, logger)

	heartbeatInterval, err := cfg.WebSocket.HeartbeatIntervalParsed()
	if err != nil {
		return fmt.Errorf("parsing heartbeat interval: %w", err)
	}
	liveSvc := liveness.New(reg, st, heartbeatInterval, logger)

	srv := api.NewServer(st, authSvc, pairingSvc, reg, relayEngine, liveSvc, limiter, cfg, logger)
	srv.Version = version

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-shutdownCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("relay server stopped")
	return nil
}

// buildLimiter returns a Redis-backed limiter when cache.url is configured,
// otherwise an in-memory sliding window. Shared by Identity (login) and
// Pairing (confirm_code), namespaced by key prefix.
func buildLimiter(cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, error) {
	if cfg.Cache.URL == "" {
		return auth.NewDefaultLimiter(), nil
	}
	logger.Info("using redis-backed rate limiter", slog.String("url", redactURL(cfg.Cache.URL)))
	return ratelimit.NewRedisWindow(cfg.Cache.URL, 60*time.Second, 5)
}

// redactURL strips userinfo from a connection URL before logging it.
func redactURL(rawURL string) string {
	if idx := strings.Index(rawURL, "@"); idx >= 0 {
		if schemeEnd := strings.Index(rawURL, "://"); schemeEnd >= 0 {
			return rawURL[:schemeEnd+3] + "redacted" + rawURL[idx:]
		}
	}
	return rawURL
}

// runMigrate handles the migrate subcommand with up/down/status operations.
func runMigrate() error {
	logger := setupLogger("info", "text")

	cfgPath := configPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	action := "up"
	if len(os.Args) >= 3 {
		action = os.Args[2]
	}

	switch action {
	case "up":
		return database.MigrateUp(cfg.Database.URL, logger)
	case "down":
		return database.MigrateDown(cfg.Database.URL, logger)
	case "status":
		v, dirty, err := database.MigrateStatus(cfg.Database.URL)
		if err != nil {
			return err
		}
		fmt.Printf("Migration version: %d\n", v)
		fmt.Printf("Dirty: %v\n", dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate action: %s (use: up, down, status)", action)
	}
}

// runVersion prints version information and exits.
func runVersion() {
	fmt.Printf("simbridge %s\n", version)
	fmt.Printf("  commit:     %s\n", commit)
	fmt.Printf("  built:      %s\n", buildDate)
}

// configPath returns the config file path from RELAY_CONFIG_PATH env var or
// the default "relay.toml".
func configPath() string {
	if p := os.Getenv("RELAY_CONFIG_PATH"); p != "" {
		return p
	}
	return "relay.toml"
}

// setupLogger creates a slog.Logger with the given level and format.
func setupLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
