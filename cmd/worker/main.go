package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/toolsascode/lockstep/internal/config"
	"github.com/toolsascode/lockstep/internal/loader"
	"github.com/toolsascode/lockstep/internal/logger"
	"github.com/toolsascode/lockstep/internal/migrate"
	"github.com/toolsascode/lockstep/internal/queuefactory"
	"github.com/toolsascode/lockstep/internal/storefactory"
	"github.com/toolsascode/lockstep/internal/worker"
	"github.com/toolsascode/lockstep/migrations"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Check if queue is enabled
	if !cfg.Queue.Enabled {
		logger.Fatalf("Queue is not enabled. Set LOCKSTEP_QUEUE_ENABLED=true to use the worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect the store
	st, err := storefactory.NewStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to connect store: %v", err)
	}
	defer st.Close()

	// Build the registry: compiled-in migrations plus any script files
	registry := migrate.NewRegistry()
	if err := migrations.Register(registry); err != nil {
		logger.Fatalf("Failed to register migrations: %v", err)
	}

	if cfg.MigrationsPath != "" {
		count, err := loader.New(cfg.MigrationsPath).Load(registry)
		if err != nil {
			logger.Fatalf("Failed to load migrations from %s: %v", cfg.MigrationsPath, err)
		}
		logger.Infof("Loaded %d migration(s) from %s", count, cfg.MigrationsPath)
	}

	engine := migrate.NewEngine(registry, st,
		migrate.WithLockLease(cfg.LockLease),
	)

	logger.Infof("Registry holds %d migration(s)", engine.GetNumberOfMigrations())

	// Create queue
	q, err := queuefactory.NewQueue(cfg)
	if err != nil {
		logger.Fatalf("Failed to create queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	// Create worker
	w := worker.NewWorker(engine, q)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start worker in goroutine
	go func() {
		if err := w.Start(ctx); err != nil {
			logger.Errorf("Worker error: %v", err)
			cancel()
		}
	}()

	logger.Info("Migration worker started. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	logger.Info("Shutting down worker...")

	if err := w.Stop(); err != nil {
		logger.Errorf("Error stopping worker: %v", err)
	}

	logger.Info("Worker stopped")
}
