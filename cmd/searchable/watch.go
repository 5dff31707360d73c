package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/searchable/internal/batch"
	"github.com/platinummonkey/searchable/internal/daemon"
	"github.com/platinummonkey/searchable/internal/state"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Convert every PDF dropped into an inbox directory",
	Long: `Run searchable as a long-running process watching an inbox.

Every PDF in the watch directory is converted into the output directory as
searchable-<name>.pdf. Files are tracked by content hash, so unchanged files
are never converted twice and edited files are converted again.

Scans run at startup, shortly after files change, every --watch-interval and
on POST /api/scan/trigger when --health-addr is set.

Features:
- File system events with a periodic safety scan
- Graceful shutdown on SIGTERM/SIGINT
- Optional health, status and control HTTP endpoints
- Optional PID file for process management
- Failed files are retried a few times, then left alone until they change

Examples:
  # Watch ~/searchable/inbox, write next to the current directory
  searchable watch --output-dir ~/Documents/searchable

  # Scan once and exit
  searchable watch --once --report run.yaml

  # Full example
  searchable watch \
    --watch-dir /srv/scans \
    --output-dir /srv/searchable \
    --watch-interval 10m \
    --health-addr :8080 \
    --pid-file /var/run/searchable.pid`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("watch-dir", "", "inbox directory to watch (default: ~/searchable/inbox)")
	watchCmd.Flags().Duration("watch-interval", 0, "time between full scans (0 = file events only)")
	watchCmd.Flags().String("state-file", "", "state file path (default: ~/.searchable-state.json)")
	watchCmd.Flags().String("health-addr", "", "health check HTTP address (e.g., :8080)")
	watchCmd.Flags().String("pid-file", "", "PID file path")
	watchCmd.Flags().Bool("once", false, "scan the inbox once and exit")
	watchCmd.Flags().Bool("reset", false, "forget previously converted files")
	watchCmd.Flags().String("report", "", "with --once, write a YAML run report to this file")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	if info, err := os.Stat(cfg.WatchDir); err != nil || !info.IsDir() {
		return fmt.Errorf("watch directory %s does not exist", cfg.WatchDir)
	}

	stateStore, err := state.LoadOrCreate(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("failed to initialize state: %w", err)
	}
	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		log.Info("Reset flag set, clearing watch state")
		stateStore.Reset()
		if err := stateStore.Save(); err != nil {
			return fmt.Errorf("failed to reset state: %w", err)
		}
	}

	conv, err := newConverter(cfg, log)
	if err != nil {
		return err
	}

	proc, err := batch.New(&batch.Config{
		Config:     cfg,
		Logger:     log,
		StateStore: stateStore,
		Converter:  conv,
	})
	if err != nil {
		return fmt.Errorf("failed to create batch processor: %w", err)
	}

	if once, _ := cmd.Flags().GetBool("once"); once {
		return runOnce(cmd, proc)
	}

	d, err := daemon.New(&daemon.Config{
		Runner:          proc,
		Logger:          log,
		ScanInterval:    cfg.WatchInterval,
		WatchDir:        cfg.WatchDir,
		HealthCheckAddr: cfg.HealthAddr,
		PIDFile:         cfg.PIDFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runOnce(cmd *cobra.Command, proc *batch.Processor) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := proc.Run(ctx, nil)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if path, _ := cmd.Flags().GetString("report"); path != "" {
		data, err := result.YAML()
		if err != nil {
			return err
		}
		if err := batch.WriteFileAtomic(path, data); err != nil {
			return err
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), result.Summary())
	if result.HasFailures() {
		return fmt.Errorf("scan completed with %d failures", result.FailureCount)
	}
	return nil
}
