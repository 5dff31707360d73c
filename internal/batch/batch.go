// Package batch converts every PDF in an inbox directory, skipping files
// whose content was already converted.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/platinummonkey/searchable/internal/config"
	"github.com/platinummonkey/searchable/internal/converter"
	"github.com/platinummonkey/searchable/internal/logger"
	"github.com/platinummonkey/searchable/internal/pdfinfo"
	"github.com/platinummonkey/searchable/internal/state"
)

// OutputPrefix is prepended to the input file name to name the output
const OutputPrefix = "searchable-"

// Converter performs a single conversion
type Converter interface {
	Convert(ctx context.Context, pdf []byte, src converter.PageSource, opts converter.Options) *converter.Outcome
}

// ProgressFunc is called before each file of a run is examined
type ProgressFunc func(index, total int, path string)

// SourceFactory builds the page image source for a document. Sources are
// pulled page by page, so nothing is rendered for rejected documents.
type SourceFactory func(pdf []byte) converter.PageSource

// Processor coordinates the inbox conversion workflow
type Processor struct {
	config     *config.Config
	logger     *logger.Logger
	stateStore *state.Manager
	converter  Converter
	newSource  SourceFactory
}

// Config holds configuration for the batch processor
type Config struct {
	Config     *config.Config
	Logger     *logger.Logger
	StateStore *state.Manager
	Converter  Converter

	// NewSource defaults to rendering pages with converter.Renderer
	NewSource SourceFactory
}

// New creates a new batch processor
func New(cfg *Config) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	if cfg.Config == nil {
		return nil, fmt.Errorf("config.Config is required")
	}
	if cfg.StateStore == nil {
		return nil, fmt.Errorf("stateStore is required")
	}
	if cfg.Converter == nil {
		return nil, fmt.Errorf("converter is required")
	}

	newSource := cfg.NewSource
	if newSource == nil {
		dpi := cfg.Config.RenderDPI
		newSource = func(pdf []byte) converter.PageSource {
			return converter.NewRenderer(pdf, dpi, log)
		}
	}

	return &Processor{
		config:     cfg.Config,
		logger:     log,
		stateStore: cfg.StateStore,
		converter:  cfg.Converter,
		newSource:  newSource,
	}, nil
}

// Run scans the watch directory once and converts new or changed PDFs.
// State is saved after every file so an interrupted run loses nothing.
// progress may be nil.
func (p *Processor) Run(ctx context.Context, progress ProgressFunc) (*Result, error) {
	p.logger.WithFields("dir", p.config.WatchDir).Info("Starting batch run")
	startTime := time.Now()

	result := NewResult()

	files, err := ListInputs(p.config.WatchDir)
	if err != nil {
		return nil, err
	}
	result.TotalFiles = len(files)

	if err := p.stateStore.Load(); err != nil {
		p.logger.WithFields("error", err).Warn("Failed to load state, starting fresh")
	}
	if removed := p.stateStore.Prune(files); len(removed) > 0 {
		p.logger.WithFields("count", len(removed)).Info("Forgot inputs removed from the watch directory")
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(startTime)
			return result, err
		}

		if progress != nil {
			progress(i, len(files), path)
		}

		log := p.logger.WithFields("file", i+1, "total", len(files), "path", path)

		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).Error("Failed to read input")
			result.AddError(path, fmt.Errorf("failed to read input: %w", err))
			continue
		}
		hash := HashContent(data)

		fileState, needed := p.stateStore.Check(path, hash, int64(len(data)))
		if !needed {
			log.Debug("Unchanged since last run, skipping")
			result.UnchangedCount++
			continue
		}

		result.ProcessedFiles++
		fileState.MarkInProgress(hash, "")
		if err := p.stateStore.Record(fileState); err != nil {
			log.WithError(err).Warn("Failed to save state")
		}

		p.processFile(ctx, log, fileState, data, result)

		if err := p.stateStore.Record(fileState); err != nil {
			log.WithError(err).Warn("Failed to save state")
		}
	}

	if err := p.stateStore.FinishScan(); err != nil {
		p.logger.WithError(err).Warn("Failed to save state")
	}

	result.Duration = time.Since(startTime)

	p.logger.WithFields(
		"total", result.TotalFiles,
		"processed", result.ProcessedFiles,
		"successful", result.SuccessCount,
		"failed", result.FailureCount,
		"skipped", result.SkippedCount,
		"unchanged", result.UnchangedCount,
		"tracked", p.stateStore.Counts(),
		"duration", result.Duration,
	).Info("Batch run completed")

	return result, nil
}

// processFile converts one input and leaves its final status on fileState
func (p *Processor) processFile(ctx context.Context, log *logger.Logger, fileState *state.FileState, data []byte, result *Result) {
	path := fileState.Path

	if !pdfinfo.HasPDFHeader(data) {
		err := fmt.Errorf("%w: missing %%PDF- header", pdfinfo.ErrInvalidDocument)
		log.Warn("Not a PDF, skipping")
		fileState.MarkSkipped(err)
		result.AddSkipped(path, err)
		return
	}

	startTime := time.Now()
	outcome := p.converter.Convert(ctx, data, p.newSource(data), converter.Options{
		Language:       p.config.Language,
		PreserveImages: converter.Bool(p.config.PreserveImages),
		MaxPages:       p.config.MaxPages,
	})
	fileState.JobID = outcome.JobID
	fileState.PageCount = outcome.PageCount

	if !outcome.Success {
		if ctx.Err() != nil {
			log.Info("Conversion interrupted, file stays pending")
			fileState.Status = state.ConversionStatusPending
			return
		}
		if rejected(outcome.Err) {
			log.WithError(outcome.Err).Warn("Document rejected")
			fileState.MarkSkipped(outcome.Err)
			result.AddSkipped(path, outcome.Err)
			return
		}
		log.WithError(outcome.Err).Error("Conversion failed")
		fileState.MarkError(outcome.Err)
		result.AddError(path, outcome.Err)
		return
	}

	outputPath := filepath.Join(p.config.OutputDir, OutputName(path))
	if err := WriteFileAtomic(outputPath, outcome.Output); err != nil {
		log.WithError(err).Error("Failed to write output")
		fileState.MarkError(err)
		result.AddError(path, err)
		return
	}

	fileState.MarkConverted(outputPath, outcome.PageCount)
	result.AddSuccess(&FileResult{
		InputPath:  path,
		OutputPath: outputPath,
		JobID:      outcome.JobID,
		PageCount:  outcome.PageCount,
		Words:      outcome.WordCount(),
		Confidence: outcome.Confidence(),
		Warnings:   outcome.Warnings,
		StartTime:  startTime,
		Duration:   time.Since(startTime),
	})

	log.WithFields("output", outputPath, "pages", outcome.PageCount, "duration", outcome.Duration).
		Info("File converted")
}

// rejected reports whether err means the input can never convert as-is
func rejected(err error) bool {
	return errors.Is(err, converter.ErrEmptyDocument) ||
		errors.Is(err, converter.ErrPageLimitExceeded) ||
		errors.Is(err, pdfinfo.ErrInvalidDocument)
}

// ListInputs returns the absolute paths of the PDFs directly inside dir, sorted
func ListInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !IsInput(entry.Name()) || !entry.Type().IsRegular() {
			continue
		}
		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// IsInput reports whether name looks like a PDF this tool should convert.
// Hidden files and previously generated outputs are ignored.
func IsInput(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, OutputPrefix) {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".pdf")
}

// OutputName returns the output file name for an input path
func OutputName(inputPath string) string {
	return OutputPrefix + sanitizeFilename(filepath.Base(inputPath))
}

// HashContent returns the hex SHA256 of data
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// sanitizeFilename removes or replaces characters that are invalid in filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "_",
		"?", "_",
		"\"", "'",
		"<", "_",
		">", "_",
		"|", "-",
	)
	return replacer.Replace(name)
}

// WriteFileAtomic writes data to a temporary file next to path, then renames it
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename output file: %w", err)
	}
	return nil
}
