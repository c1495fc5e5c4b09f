/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (YAML, .env, environment)
  3. Initialize SQLite store and seed the roster
  4. Create API handler and router
  5. Start the audit scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (default: shifts.yaml, optional)
  -listen  HTTP listen address (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the audit scheduler (waits for a running audit)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -config=./shifts.yaml
  ./server -db=":memory:" -listen=":3000"
  SHIFT_ROSTER=./roster.yaml ./server

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/shift-engine/api"
	"github.com/warp/shift-engine/config"
	"github.com/warp/shift-engine/notify"
	"github.com/warp/shift-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "shifts.yaml", "YAML configuration file")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}
	log := cfg.Logger()

	// Initialize store
	store, err := sqlite.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if cfg.Roster != "" {
		roster, err := sqlite.LoadRoster(cfg.Roster)
		if err != nil {
			log.Fatalf("Failed to load roster: %v", err)
		}
		if err := store.SeedRoster(context.Background(), roster); err != nil {
			log.Fatalf("Failed to seed roster: %v", err)
		}
		log.WithFields(logrus.Fields{
			"workers":    len(roster.Workers),
			"task_types": len(roster.TaskTypes),
		}).Info("roster seeded")
	}

	var notifier notify.Notifier
	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.WithError(err).Warn("telegram notifications disabled")
		} else {
			notifier = tg
		}
	}

	// Initialize handler
	handler := api.NewHandler(store, api.Options{
		MaxOccurrences:   cfg.MaxOccurrences,
		AuditHorizonDays: cfg.Audit.HorizonDays,
		Notifier:         notifier,
		Log:              log,
	})

	if cfg.Audit.Enabled {
		if err := handler.Audit.Start(cfg.Audit.Cron); err != nil {
			log.Fatalf("Failed to start audit scheduler: %v", err)
		}
		defer handler.Audit.Stop()
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("addr", cfg.Listen).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped")
}
