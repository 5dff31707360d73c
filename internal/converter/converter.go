// Package converter turns image-only PDFs into searchable PDFs: it inspects
// the document, recognizes the pages that lack text and assembles the result.
package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/searchable/internal/logger"
	"github.com/platinummonkey/searchable/internal/ocr"
	"github.com/platinummonkey/searchable/internal/pdfenhancer"
	"github.com/platinummonkey/searchable/internal/pdfinfo"
)

// Classifier inspects the original document
type Classifier interface {
	Classify(ctx context.Context, data []byte) (*pdfinfo.Classification, error)
}

// Assembler builds the output document
type Assembler interface {
	Assemble(ctx context.Context, original []byte, pages []ocr.PageResult, preserveImages bool) (*pdfenhancer.Assembly, error)
}

// Converter runs conversions. It holds no per-conversion state, so Convert
// may be called concurrently; each call owns its recognition session.
type Converter struct {
	logger        *logger.Logger
	classifier    Classifier
	assembler     Assembler
	engineFactory ocr.EngineFactory
}

// Config holds configuration for the converter
type Config struct {
	Logger *logger.Logger

	// Classifier defaults to pdfinfo.New
	Classifier Classifier

	// Assembler defaults to pdfenhancer.New
	Assembler Assembler

	// EngineFactory defaults to ocr.NewTesseractEngine
	EngineFactory ocr.EngineFactory
}

// New creates a new converter instance
func New(cfg *Config) *Converter {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	c := &Converter{
		logger:        log,
		classifier:    cfg.Classifier,
		assembler:     cfg.Assembler,
		engineFactory: cfg.EngineFactory,
	}
	if c.classifier == nil {
		c.classifier = pdfinfo.New(&pdfinfo.Config{Logger: log})
	}
	if c.assembler == nil {
		c.assembler = pdfenhancer.New(&pdfenhancer.Config{Logger: log})
	}
	if c.engineFactory == nil {
		c.engineFactory = ocr.NewTesseractEngine
	}
	return c
}

// conversion is the state of one Convert call
type conversion struct {
	*Converter
	log     *logger.Logger
	opts    Options
	outcome *Outcome
	state   State
	session *ocr.Session
}

// Convert converts pdf using page images from src. It never returns nil;
// failures are reported through Outcome.Success, Outcome.Error and Outcome.Err.
func (c *Converter) Convert(ctx context.Context, pdf []byte, src PageSource, opts Options) *Outcome {
	start := time.Now()
	jobID := uuid.NewString()

	conv := &conversion{
		Converter: c,
		log:       c.logger.WithJob(jobID),
		opts:      opts,
		outcome:   NewOutcome(jobID),
		state:     StateIdle,
	}

	err := conv.run(ctx, pdf, src)
	conv.outcome.Duration = time.Since(start)

	if err != nil {
		conv.outcome.SetError(err)
		conv.transition(StateFailed)
		conv.log.WithError(err).WithFields(
			"pages", conv.outcome.PageCount,
			"recognized", len(conv.outcome.Pages),
			"duration", conv.outcome.Duration,
		).Error("Conversion failed")
		return conv.outcome
	}

	conv.transition(StateDone)
	conv.log.WithFields(
		"pages", conv.outcome.PageCount,
		"recognized", len(conv.outcome.Pages),
		"words", conv.outcome.WordCount(),
		"bytes", len(conv.outcome.Output),
		"duration", conv.outcome.Duration,
	).Info("Conversion complete")
	return conv.outcome
}

func (conv *conversion) run(ctx context.Context, pdf []byte, src PageSource) (err error) {
	defer conv.closeSession()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversion panic: %v", r)
		}
	}()

	geometry, err := conv.inspect(ctx, pdf)
	if err != nil {
		return err
	}

	if err := conv.recognize(ctx, src, geometry); err != nil {
		return err
	}

	return conv.assemble(ctx, pdf)
}

// inspect is the pre-flight phase: nothing expensive happens before it passes
func (conv *conversion) inspect(ctx context.Context, pdf []byte) ([]pdfinfo.PageGeometry, error) {
	conv.transition(StateInspecting)

	classified, err := conv.classifier.Classify(ctx, pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect PDF: %w", err)
	}
	for _, warning := range classified.Warnings {
		conv.outcome.AddWarning(warning)
	}
	geometry := classified.Pages

	total := len(geometry)
	conv.outcome.PageCount = total
	if total == 0 {
		return nil, ErrEmptyDocument
	}
	if conv.opts.MaxPages > 0 && total > conv.opts.MaxPages {
		return nil, fmt.Errorf("%w: PDF has %d pages, which exceeds the maximum allowed %d pages",
			ErrPageLimitExceeded, total, conv.opts.MaxPages)
	}

	withText := 0
	for _, g := range geometry {
		if g.HasSelectableText {
			withText++
		}
	}
	conv.log.WithFields("pages", total, "with_text", withText).
		Info("Processing pages, skipping recognition on pages with selectable text")

	conv.progress(StageExtracting, 0, total, 0)
	return geometry, nil
}

func (conv *conversion) recognize(ctx context.Context, src PageSource, geometry []pdfinfo.PageGeometry) error {
	conv.transition(StateRecognizing)

	total := len(geometry)
	expected := 0
	for _, g := range geometry {
		if !g.HasSelectableText {
			expected++
		}
	}

	streamed := 0
	for {
		image, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return err
			}
			return fmt.Errorf("%w: page %d: %w", ErrPageSource, streamed+1, err)
		}

		streamed++
		if streamed > total {
			return fmt.Errorf("%w: received page image %d for a %d-page PDF", ErrPageCountMismatch, streamed, total)
		}
		conv.progress(StageRecognizing, streamed, total, percent(streamed, total, 80))

		log := conv.log.WithPage(streamed)
		if geometry[streamed-1].HasSelectableText {
			log.Debug("Skipping recognition, page has selectable text")
			continue
		}

		if conv.session == nil {
			if err := conv.openSession(ctx); err != nil {
				return err
			}
		}

		done := log.Timed("recognize")
		result, err := conv.session.Recognize(ctx, image, streamed)
		done()
		if err != nil {
			return err
		}
		conv.outcome.Pages = append(conv.outcome.Pages, *result)
	}

	if streamed != total {
		return fmt.Errorf("%w: received %d of %d page images", ErrPageCountMismatch, streamed, total)
	}
	if recognized := len(conv.outcome.Pages); recognized != expected {
		return fmt.Errorf("%w: recognized %d of %d expected pages", ErrPageCountMismatch, recognized, expected)
	}
	return nil
}

func (conv *conversion) assemble(ctx context.Context, pdf []byte) error {
	conv.transition(StateAssembling)

	total := conv.outcome.PageCount
	conv.progress(StageAssembling, total, total, 90)

	asm, err := conv.assembler.Assemble(ctx, pdf, conv.outcome.Pages, conv.opts.preserveImages())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrAssembly, err)
	}

	conv.outcome.SetSuccess(asm)
	conv.progress(StageAssembling, total, total, 100)
	return nil
}

func (conv *conversion) openSession(ctx context.Context) error {
	defer conv.log.Timed("engine_init")()

	session, err := ocr.Open(ctx, conv.engineFactory, conv.opts.language(), conv.log)
	if err != nil {
		return err
	}
	conv.session = session
	return nil
}

func (conv *conversion) closeSession() {
	if conv.session == nil {
		return
	}
	if err := conv.session.Close(); err != nil {
		conv.log.WithError(err).Warn("Failed to close recognition session")
	}
}

func (conv *conversion) transition(to State) {
	conv.log.WithFields("from", conv.state, "to", to).Debug("Conversion state changed")
	conv.state = to
	conv.outcome.State = to
}

func (conv *conversion) progress(stage string, current, total, pct int) {
	if conv.opts.Progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			conv.log.WithFields("stage", stage, "panic", r).Warn("Progress callback panicked")
		}
	}()
	conv.opts.Progress(Progress{
		Stage:       stage,
		CurrentPage: current,
		TotalPages:  total,
		Percentage:  pct,
	})
}

// percent returns round(n/total*scale)
func percent(n, total, scale int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * float64(scale)))
}
