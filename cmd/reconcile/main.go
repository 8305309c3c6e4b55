/*
main.go - One-shot reconciliation runner

PURPOSE:
  Runs a single reconciliation pass against the configured database and
  exits. Intended for cron or manual invocation; the same job is also
  reachable through POST /api/admin/reconcile on a running server.

COMMAND-LINE FLAGS:
  -config  Optional YAML config file (same keys as the server).

EXIT CODES:
  0  Pass completed
  1  Configuration, storage, or reconciliation failure
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/signalpost/reputation-engine/config"
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

	store, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err), zap.String("path", cfg.Store.Path))
	}
	defer store.Close()

	job := reconcile.NewJob(store, logger)
	job.Workers = cfg.Reconcile.Workers

	report, err := job.Run(context.Background())
	if err != nil {
		logger.Fatal("reconciliation failed", zap.Error(err))
	}

	logger.Info("done",
		zap.Int("users", report.Users),
		zap.Int("adjusted", report.Adjusted),
		zap.Int("badges_awarded", report.BadgesNew),
	)
}
