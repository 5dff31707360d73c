// Package daemon provides the long-running watch mode: it rescans the inbox
// on file events, on a fixed interval and on request.
package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/searchable/internal/batch"
	"github.com/platinummonkey/searchable/internal/logger"
)

// Scan triggers
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerEvent    = "event"
	TriggerManual   = "manual"
)

// DefaultDebounce coalesces bursts of file events into one scan
const DefaultDebounce = 2 * time.Second

// Runner performs one inbox scan
type Runner interface {
	Run(ctx context.Context, progress batch.ProgressFunc) (*batch.Result, error)
}

// Daemon manages inbox scanning in the background
type Daemon struct {
	runner        Runner
	logger        *logger.Logger
	interval      time.Duration
	debounce      time.Duration
	watchDir      string
	healthAddr    string
	pidFile       string
	httpServer    *http.Server
	listener      net.Listener
	statusTracker *StatusTracker
	control       *scanControl
}

// Config holds configuration for the daemon
type Config struct {
	Runner          Runner
	Logger          *logger.Logger
	ScanInterval    time.Duration // Time between scheduled scans (0 = file events only)
	Debounce        time.Duration // Quiet period after file events (default: 2s)
	WatchDir        string        // Directory to watch for file events (empty = no events)
	HealthCheckAddr string        // Optional health check address (e.g. ":8080")
	PIDFile         string        // Optional PID file path
}

// New creates a new daemon instance
func New(cfg *Config) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	if cfg.ScanInterval < 0 {
		return nil, fmt.Errorf("scan interval must be non-negative, got %s", cfg.ScanInterval)
	}
	if cfg.ScanInterval == 0 && cfg.WatchDir == "" {
		return nil, fmt.Errorf("either a scan interval or a watch directory is required")
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Daemon{
		runner:        cfg.Runner,
		logger:        log,
		interval:      cfg.ScanInterval,
		debounce:      debounce,
		watchDir:      cfg.WatchDir,
		healthAddr:    cfg.HealthCheckAddr,
		pidFile:       cfg.PIDFile,
		statusTracker: NewStatusTracker(),
		control:       newScanControl(),
	}, nil
}

// Status returns the current daemon status
func (d *Daemon) Status() Status {
	return d.statusTracker.GetStatus()
}

// Run starts the daemon and blocks until ctx is canceled or a shutdown signal arrives
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.WithFields("interval", d.interval, "watch_dir", d.watchDir).Info("Starting daemon")

	if d.pidFile != "" {
		if err := d.writePIDFile(); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer d.removePIDFile()
	}

	if d.healthAddr != "" {
		if err := d.startHealthCheck(); err != nil {
			return fmt.Errorf("failed to start health check: %w", err)
		}
		defer d.stopHealthCheck()
	}

	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	if d.watchDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}
		defer func() {
			_ = watcher.Close()
		}()
		if err := watcher.Add(d.watchDir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d.watchDir, err)
		}
		events = watcher.Events
		watchErrors = watcher.Errors
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	var tick <-chan time.Time
	if d.interval > 0 {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// stopped until the first relevant file event
	debounce := time.NewTimer(d.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	d.logger.Info("Running initial scan")
	d.runScan(ctx, TriggerStartup)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Context canceled, shutting down")
			return ctx.Err()

		case sig := <-sigChan:
			d.logger.WithFields("signal", sig.String()).Info("Received shutdown signal")
			return nil

		case <-tick:
			d.logger.Debug("Scan interval elapsed, triggering scan")
			d.runScan(ctx, TriggerInterval)

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if relevant(event) {
				d.logger.WithFields("path", event.Name, "op", event.Op.String()).Debug("Inbox changed")
				debounce.Reset(d.debounce)
			}

		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			d.logger.WithError(err).Warn("File watcher error")

		case <-debounce.C:
			d.runScan(ctx, TriggerEvent)

		case <-d.control.manualTrigger:
			d.logger.Info("Manual scan requested")
			d.runScan(ctx, TriggerManual)
		}
	}
}

// relevant reports whether a file event may add or change an input
func relevant(event fsnotify.Event) bool {
	if !batch.IsInput(event.Name) {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}

// runScan executes a single inbox scan with error recovery
func (d *Daemon) runScan(ctx context.Context, trigger string) {
	log := d.logger.WithFields("trigger", trigger)
	log.Info("Starting scan")
	startTime := time.Now()

	scanCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	d.control.begin(cancel)
	defer d.control.end()

	d.statusTracker.ScanStarted(trigger)
	if d.interval > 0 {
		d.statusTracker.SetNextScanTime(startTime.Add(d.interval))
	}

	result, err := d.scan(scanCtx)
	duration := time.Since(startTime)

	if err != nil {
		d.statusTracker.ScanFailed(err, duration)
		log.WithFields("error", err, "duration", duration).Error("Scan failed")
		return
	}

	d.statusTracker.ScanCompleted(NewScanSummary(startTime, result))

	log.WithFields(
		"total", result.TotalFiles,
		"processed", result.ProcessedFiles,
		"successful", result.SuccessCount,
		"failed", result.FailureCount,
		"skipped", result.SkippedCount,
		"unchanged", result.UnchangedCount,
		"duration", duration,
	).Info("Scan completed")

	if result.HasFailures() {
		log.WithFields("count", result.FailureCount).Warn("Scan completed with failures")
		for _, failure := range result.Failures {
			log.WithFields("path", failure.InputPath, "error", failure.Reason).Warn("File conversion failed")
		}
	}
}

// scan runs the runner, turning a panic into an error so the loop survives
func (d *Daemon) scan(ctx context.Context) (result *batch.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scan panicked: %v", rec)
		}
	}()

	result, err = d.runner.Run(ctx, d.statusTracker.UpdateProgress)
	if err == nil && result == nil {
		err = fmt.Errorf("scan returned no result")
	}
	return result, err
}

// writePIDFile writes the current process ID to the configured PID file
func (d *Daemon) writePIDFile() error {
	pid := os.Getpid()
	content := fmt.Sprintf("%d\n", pid)

	if err := os.WriteFile(d.pidFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.logger.WithFields("pid", pid, "file", d.pidFile).Info("Wrote PID file")
	return nil
}

// removePIDFile removes the PID file
func (d *Daemon) removePIDFile() {
	if d.pidFile == "" {
		return
	}

	if err := os.Remove(d.pidFile); err != nil {
		d.logger.WithFields("file", d.pidFile, "error", err).
			Warn("Failed to remove PID file")
	} else {
		d.logger.WithFields("file", d.pidFile).Info("Removed PID file")
	}
}

// handler builds the health and control HTTP routes
func (d *Daemon) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	// not ready while the last scan failed
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if d.statusTracker.GetStatus().State == StateError {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("ERROR\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	mux.HandleFunc("/status", d.handleStatus)
	mux.HandleFunc("/api/scan/trigger", d.handleTriggerScan)
	mux.HandleFunc("/api/scan/cancel", d.handleCancelScan)
	return mux
}

// startHealthCheck starts the health check HTTP server
func (d *Daemon) startHealthCheck() error {
	listener, err := net.Listen("tcp", d.healthAddr)
	if err != nil {
		return err
	}
	d.listener = listener

	d.httpServer = &http.Server{
		Handler:           d.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		d.logger.WithFields("addr", listener.Addr().String()).Info("Starting health check server")
		if err := d.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			d.logger.WithFields("error", err).Error("Health check server failed")
		}
	}()

	return nil
}

// HealthAddr returns the bound health check address, or "" when not serving
func (d *Daemon) HealthAddr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// stopHealthCheck stops the health check HTTP server
func (d *Daemon) stopHealthCheck() {
	if d.httpServer == nil {
		return
	}

	d.logger.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.httpServer.Shutdown(ctx); err != nil {
		d.logger.WithFields("error", err).Warn("Failed to shutdown health check server gracefully")
	} else {
		d.logger.Info("Health check server stopped")
	}
}
