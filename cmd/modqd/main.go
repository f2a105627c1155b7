// Package main implements modqd, a reference daemon that drains a durable
// operation queue. It wires configuration, logging, the database-backed
// store, the processor and the health endpoints together the way an
// embedding application would.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phrazzld/modq/config"
	"github.com/phrazzld/modq/events"
	"github.com/phrazzld/modq/health"
	"github.com/phrazzld/modq/logger"
	"github.com/phrazzld/modq/postgres"
	"github.com/phrazzld/modq/queue"
	"github.com/phrazzld/modq/sqlite"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("modqd: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	slogger := logger.Setup(cfg.Log.Level)

	db, st, err := openStore(cfg, slogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slogger.Error("failed to close database", "error", err)
		}
	}()

	emitter := events.NewInMemoryEmitter(slogger)
	emitter.RegisterHandler(events.HandlerFunc(func(ctx context.Context, ev *events.Event) error {
		slogger.Info("queue event",
			"type", ev.Type,
			"record_id", ev.RecordID,
			"kind", ev.Kind,
			"attempt", ev.Attempt)
		return nil
	}))

	// Register executors for the operation kinds this deployment handles.
	// The echo kind exists so an empty deployment still drains cleanly.
	mux := queue.NewHandlerMux()
	mux.Handle("echo", func(ctx context.Context, rec *queue.Record) error {
		var payload map[string]any
		if err := rec.UnmarshalPayload(&payload); err != nil {
			return queue.Terminal(err)
		}
		slogger.Info("echo operation executed",
			"record_id", rec.ID,
			"target_id", rec.TargetID,
			"payload", payload)
		return nil
	})

	q := queue.New(st, mux, emitter, cfg.Queue.Options(), slogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := q.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queue: %w", err)
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: health.NewHandler(q, slogger),
	}

	serverErr := make(chan error, 1)
	go func() {
		slogger.Info("health server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slogger.Info("shutdown signal received")
	case err := <-serverErr:
		slogger.Error("health server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slogger.Error("health server shutdown failed", "error", err)
	}
	if err := q.Stop(shutdownCtx); err != nil {
		slogger.Error("queue shutdown incomplete, records will be recovered on restart", "error", err)
	}

	slogger.Info("modqd stopped")
	return nil
}

// openStore connects to the configured database and returns the matching
// operation store. A database URL selects postgres with migrations applied
// on startup; otherwise the embedded sqlite file is used.
func openStore(cfg *config.Config, slogger *slog.Logger) (*sql.DB, queue.OperationStore, error) {
	if cfg.Database.URL != "" {
		db, err := postgres.Open(cfg.Database.URL, slogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return db, postgres.NewOperationStore(db), nil
	}

	db, err := sqlite.Open(cfg.Database.Path, slogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return db, sqlite.NewOperationStore(db), nil
}
