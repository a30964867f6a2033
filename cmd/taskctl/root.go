package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yukikurage/mo-task-monitor/internal/config"
	"github.com/yukikurage/mo-task-monitor/internal/logger"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"github.com/yukikurage/mo-task-monitor/internal/storage"
	"go.uber.org/zap"
)

type rootOptions struct {
	verbose bool
}

// newRootCmd builds the taskctl command tree. Storage is selected by the
// same environment as the server.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "taskctl",
		Short: "Administer task monitor storage",
		Long: `taskctl runs administrative storage operations against the backend
configured through the server's environment (STORAGE_MODE, DB_DRIVER, ...).`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(
		newInitCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newResetCmd(opts),
		newReconcileCmd(opts),
		newStatsCmd(opts),
	)
	return rootCmd
}

// withBackend opens the configured backend, runs fn and closes it.
func withBackend(ctx context.Context, opts *rootOptions, fn func(repository.Backend, *zap.Logger) error) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, Development: true})
	if err != nil {
		return err
	}
	defer log.Sync()

	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn("Failed to close storage", zap.Error(err))
		}
	}()

	return fn(backend, log)
}
