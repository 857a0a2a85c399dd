/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the contract engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment, then apply flags
  2. Initialize logging
  3. Initialize SQLite store
  4. Load the rate schedule (built-in or RATE_SCHEDULE_PATH)
  5. Wire service, partner client, reconciler and metrics
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    HTTP listen address (overrides CONTRACTS_ADDR)
  -db      SQLite database path (overrides CONTRACTS_DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/contracts.db"

  # Run with in-memory database and JSON logs
  LOG_FORMAT=json ./server -db=":memory:"

  # Point reconciliation at the partner portal
  PARTNER_BASE_URL=https://portal.example.com/api ./server

ENVIRONMENT:
  See config/config.go for the full list.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/contract-engine/api"
	"github.com/warp/contract-engine/config"
	"github.com/warp/contract-engine/factory"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/logging"
	"github.com/warp/contract-engine/metrics"
	"github.com/warp/contract-engine/partner"
	"github.com/warp/contract-engine/premium"
	"github.com/warp/contract-engine/reconcile"
	"github.com/warp/contract-engine/store/sqlite"

	// Product lines register themselves.
	_ "github.com/warp/contract-engine/health"
	_ "github.com/warp/contract-engine/travel"
	_ "github.com/warp/contract-engine/vehicle"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags
	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	logging.Init(cfg.Logging())

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	schedule, err := loadSchedule(cfg.RateSchedulePath)
	if err != nil {
		return err
	}

	locale, err := cfg.Locale()
	if err != nil {
		return err
	}

	m := metrics.New()

	svc := generic.NewContractService(store)
	svc.Observer = generic.Observers{logging.NewTransitionLogger(logging.Get()), m}

	client := partner.NewClient(cfg.Partner()).WithLatency(m)
	rec := reconcile.NewReconciler(client)
	rec.Locale = locale
	rec.Metrics = m
	if cfg.PartnerBaseURL == "" {
		logging.Warn().Add(logging.Component("partner")).Msg("PARTNER_BASE_URL not set, reconciliation calls will fail")
	}

	handler := api.NewHandler(store, svc, schedule, rec)
	handler.Metrics = m

	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.CORSAllowedOrigins})

	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Add(logging.Str("addr", *addr), logging.Str("db", *dbPath)).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logging.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logging.Info().Msg("server stopped")
	return nil
}

// loadSchedule reads a JSON rate schedule, or returns the built-in one
// when path is empty.
func loadSchedule(path string) (*premium.Schedule, error) {
	if path == "" {
		return premium.DefaultSchedule(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate schedule: %w", err)
	}
	schedule, err := factory.NewScheduleFactory().ParseSchedule(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse rate schedule %s: %w", path, err)
	}
	return schedule, nil
}
