package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cineripr/cineripr/internal/config"
	"github.com/cineripr/cineripr/internal/progress"
	"github.com/cineripr/cineripr/internal/slogutil"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run continuously on a schedule",
		Long:  `Process the download roots on the configured schedule until interrupted.`,
		RunE:  runServe,
	}

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return err
	}

	logger := slogutil.SetupLogRotation(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting cineripr in serve mode",
		"schedule", cfg.Scheduler.Schedule,
		"log_file", cfg.Log.File,
		"log_level", cfg.Log.Level)

	board := progress.NewBoard()
	orch, err := buildOrchestrator(cfg, board)
	if err != nil {
		logger.Error("setup failed", "err", err)
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Overlap guard: a scheduled tick that fires while a run is still in
	// flight is dropped, not queued.
	var running atomic.Bool
	runOnce := func() {
		if !running.CompareAndSwap(false, true) {
			logger.Warn("previous run still in progress, skipping this tick")
			return
		}
		defer running.Store(false)

		runID := uuid.NewString()
		board.BeginRun(runID)
		result, runErr := orch.RunWithID(ctx, runID)
		board.EndRun()

		if runErr != nil {
			logger.Error("run aborted", "err", runErr)
			return
		}
		logger.Info("scheduled run finished",
			"processed", result.Processed,
			"failed", result.Failed,
			"skipped_incomplete", result.SkippedIncomplete)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Scheduler.Schedule, runOnce); err != nil {
		logger.Error("invalid schedule", "schedule", cfg.Scheduler.Schedule, "err", err)
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler.Start()
		runOnce() // process whatever is already waiting
		<-ctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	return g.Wait()
}
