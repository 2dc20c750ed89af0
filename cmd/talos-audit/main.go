// Command talos-audit runs the audit log service: the HTTP/SSE surface,
// the Merkle accumulator, and whichever storage adapter TALOS_STORAGE_TYPE
// selects.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/talosprotocol/talos-audit-service/pkg/api"
	"github.com/talosprotocol/talos-audit-service/pkg/broadcast"
	"github.com/talosprotocol/talos-audit-service/pkg/config"
	"github.com/talosprotocol/talos-audit-service/pkg/ingest"
	"github.com/talosprotocol/talos-audit-service/pkg/observability"
	"github.com/talosprotocol/talos-audit-service/pkg/store"
)

// version and gitSHA are stamped at build time via -ldflags; for local builds
// they default to "dev" and "unknown".
var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("talos-audit exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if cfg.DeploymentProfilePath != "" {
		profile, err := config.LoadDeploymentProfile(cfg.DeploymentProfilePath)
		if err != nil {
			return fmt.Errorf("load deployment profile: %w", err)
		}
		profile.ApplyTo(cfg)
		slog.Info("deployment profile applied", "name", profile.Name)
	}

	logger := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, observability.DefaultConfig())
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	s, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}

	var rootCache *store.RootCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rootCache = store.NewRootCache(redis.NewClient(opts), 5*time.Second)
		logger.Info("root cache enabled", "backend", "redis")
	}

	broadcaster := broadcast.New(cfg.BroadcastQueueSize, logger, obs)

	orchestrator, report, err := ingest.NewOrchestrator(ctx, s, broadcaster, rootCache, logger, obs)
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}
	logger.Info("rehydration complete", "events_loaded", report.EventsLoaded, "hash_failures", len(report.HashFailures))
	for _, eventID := range report.HashFailures {
		logger.Warn("quarantined event failed hash verification at startup", "event_id", eventID)
	}

	filters, err := api.NewFilterEvaluator()
	if err != nil {
		return fmt.Errorf("init filter evaluator: %w", err)
	}

	srv := &api.Server{
		Orchestrator:   orchestrator,
		Broadcaster:    broadcaster,
		Filters:        filters,
		ServiceName:    "talos-audit-service",
		Version:        version,
		GitSHA:         gitSHA,
		HeartbeatEvery: cfg.SSEHeartbeatInterval,
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections stay open indefinitely
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("talos-audit listening", "port", cfg.Port, "storage", cfg.StorageType)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("talos-audit stopped")
	return nil
}

// buildStore selects and initializes the storage adapter named by
// cfg.StorageType.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StorageType {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if _, err := db.ExecContext(ctx, store.Schema()); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		return store.NewPostgresStore(db), nil
	case "memory", "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown TALOS_STORAGE_TYPE %q", cfg.StorageType)
	}
}
