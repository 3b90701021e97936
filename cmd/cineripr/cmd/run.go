package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cineripr/cineripr/internal/config"
	"github.com/cineripr/cineripr/internal/extract"
	"github.com/cineripr/cineripr/internal/orchestrator"
	"github.com/cineripr/cineripr/internal/pathutil"
	"github.com/cineripr/cineripr/internal/progress"
	"github.com/cineripr/cineripr/internal/slogutil"
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Process the download roots once",
		Long:  `Scan every download root, extract complete releases and mirror processed downloads into the finished root.`,
		RunE:  runOnce,
	}

	runCmd.Flags().Bool("demo", false, "Log planned actions without changing anything")

	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return err
	}

	logger := slogutil.SetupLogRotation(cfg.Log)
	slog.SetDefault(logger)

	if demo, _ := cmd.Flags().GetBool("demo"); demo {
		cfg.Demo = true
	}

	orch, err := buildOrchestrator(cfg, progress.NopSink{})
	if err != nil {
		logger.Error("setup failed", "err", err)
		return err
	}

	result, err := orch.Run(cmd.Context())
	if err != nil {
		return err
	}

	logger.Info("run summary",
		"processed", result.Processed,
		"failed", result.Failed,
		"skipped_incomplete", result.SkippedIncomplete,
		"no_archives", result.NoArchives)

	if result.Failed > 0 {
		return fmt.Errorf("%d release(s) failed", result.Failed)
	}
	return nil
}

// buildOrchestrator validates the configured directories, resolves the
// archiver binary and wires the orchestrator.
func buildOrchestrator(cfg *config.Config, sink progress.Sink) (*orchestrator.Orchestrator, error) {
	for _, root := range cfg.Paths.DownloadRoots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("download root %s: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("download root %s is not a directory", root)
		}
	}
	osFs := afero.NewOsFs()
	if err := pathutil.CheckDirectoryWritable(osFs, cfg.Paths.ExtractedRoot); err != nil {
		return nil, err
	}
	if err := pathutil.CheckDirectoryWritable(osFs, cfg.Paths.FinishedRoot); err != nil {
		return nil, err
	}
	if err := pathutil.CheckFileDirectoryWritable(osFs, cfg.Log.File, "log"); err != nil {
		return nil, err
	}

	command, err := extract.ResolveCommand(cfg.Extraction.SevenZip)
	if err != nil {
		return nil, err
	}

	extractor := extract.NewExtractor(command, cfg.Extraction.CPUCores)
	if cfg.Extraction.StallTimeout > 0 {
		extractor.StallTimeout = cfg.Extraction.StallTimeout
	}

	return orchestrator.New(orchestrator.Options{
		DownloadRoots: cfg.Paths.DownloadRoots,
		ExtractedRoot: cfg.Paths.ExtractedRoot,
		FinishedRoot:  cfg.Paths.FinishedRoot,
		Extractor:     extractor,
		Policy:        cfg.Subfolders.Policy(),
		Sink:          sink,
		Demo:          cfg.Demo,
	}), nil
}
