/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reputation engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load configuration
  2. Initialize SQLite store
  3. Build the lock and notification backends from config
  4. Wire the accounting, content, vote, and accept services
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Optional YAML config file. Every key has a default;
           REPUTATION_* environment variables override.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (configurable timeout)
  3. Close database and notifier
  4. Exit

EXAMPLES:
  # Run with defaults (SQLite file, in-process locks, log notifier)
  ./server

  # Run with a config file
  ./server -config=./config.yaml

  # Override a single key
  REPUTATION_SERVER_PORT=3000 ./server

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/signalpost/reputation-engine/api"
	"github.com/signalpost/reputation-engine/config"
	"github.com/signalpost/reputation-engine/forum"
	"github.com/signalpost/reputation-engine/gamify"
	"github.com/signalpost/reputation-engine/lock"
	"github.com/signalpost/reputation-engine/notify"
	"github.com/signalpost/reputation-engine/reconcile"
	"github.com/signalpost/reputation-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Store
	store, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err), zap.String("path", cfg.Store.Path))
	}
	defer store.Close()

	// Lock backend
	var locker lock.Locker
	switch cfg.Lock.Backend {
	case "redis":
		redisLock, err := lock.NewRedis(cfg.Lock.Address, cfg.Lock.Password, cfg.Lock.DB)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err), zap.String("address", cfg.Lock.Address))
		}
		defer redisLock.Close()
		locker = redisLock
	default:
		locker = lock.NewKeyed()
	}

	// Notification backend
	var notifier notify.Notifier
	switch cfg.Notify.Backend {
	case "kafka":
		kafkaNotifier := notify.NewKafka(cfg.Notify.Brokers, cfg.Notify.Topic)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	default:
		notifier = notify.NewLog(logger)
	}

	// Services
	accounting := gamify.NewAccounting(notifier)
	content := forum.NewContentService(store, accounting, locker, notifier)
	votes := forum.NewVoteService(store, accounting, locker, notifier)
	accepts := forum.NewAcceptService(store, accounting, locker, notifier)
	reconciler := reconcile.NewJob(store, logger)
	reconciler.Workers = cfg.Reconcile.Workers

	handler := api.NewHandler(store, content, votes, accepts, reconciler, logger)
	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Store.Path),
			zap.String("lock_backend", cfg.Lock.Backend),
			zap.String("notify_backend", cfg.Notify.Backend),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
