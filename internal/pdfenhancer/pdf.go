// Package pdfenhancer assembles searchable PDFs: original pages copied
// unchanged with recognized words overlaid as invisible, selectable text.
package pdfenhancer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/platinummonkey/searchable/internal/layout"
	"github.com/platinummonkey/searchable/internal/logger"
	"github.com/platinummonkey/searchable/internal/ocr"
	"github.com/platinummonkey/searchable/internal/pdfinfo"
)

// Page size used for text-only pages whose recognition dimensions are unusable
const (
	FallbackPageWidth  = 612.0
	FallbackPageHeight = 792.0
)

// PDFEnhancer builds output documents
type PDFEnhancer struct {
	logger    *logger.Logger
	geometry  pdfinfo.GeometryReader
	layout    *layout.Reconstructor
	placement Placement
	newWriter WriterFactory
	optimize  bool
}

// Config holds configuration for the PDF enhancer
type Config struct {
	Logger *logger.Logger

	// Geometry reads page sizes of the original document (default: pdfcpu)
	Geometry pdfinfo.GeometryReader

	// Layout calibrates line reconstruction
	Layout layout.Options

	// Placement calibrates text positioning
	Placement Placement

	// NewWriter creates the output writer (default: fpdf)
	NewWriter WriterFactory

	// Optimize runs the assembled document through pdfcpu's optimizer
	Optimize bool
}

// Stats counts what an assembly produced
type Stats struct {
	PagesCopied  int `json:"pages_copied" yaml:"pages_copied"`
	TextLayers   int `json:"text_layers" yaml:"text_layers"`
	WordsDrawn   int `json:"words_drawn" yaml:"words_drawn"`
	WordsSkipped int `json:"words_skipped" yaml:"words_skipped"`
}

// Assembly is the result of Assemble
type Assembly struct {
	Data  []byte
	Stats Stats

	// Warnings lists pages or steps that were degraded
	Warnings []string
}

func (a *Assembly) warn(format string, args ...any) {
	a.Warnings = append(a.Warnings, fmt.Sprintf(format, args...))
}

// New creates a new PDF enhancer instance
func New(cfg *Config) *PDFEnhancer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	pe := &PDFEnhancer{
		logger:    log,
		geometry:  cfg.Geometry,
		layout:    layout.New(cfg.Layout),
		placement: cfg.Placement.withDefaults(),
		newWriter: cfg.NewWriter,
		optimize:  cfg.Optimize,
	}
	if pe.geometry == nil {
		pe.geometry = pdfinfo.PdfcpuReader{}
	}
	if pe.newWriter == nil {
		pe.newWriter = NewFpdfWriter
	}
	return pe
}

// Assemble builds the output document. With preserveImages every original
// page is copied and pages with a recognition result receive an invisible
// text layer. Without it a text-only document with one visible page per
// result is produced.
func (pe *PDFEnhancer) Assemble(ctx context.Context, original []byte, pages []ocr.PageResult, preserveImages bool) (*Assembly, error) {
	defer pe.logger.Timed("assemble")()

	var (
		asm *Assembly
		err error
	)
	if preserveImages {
		asm, err = pe.overlay(ctx, original, pages)
	} else {
		asm, err = pe.textOnly(ctx, pages)
	}
	if err != nil {
		return nil, err
	}

	if pe.optimize {
		data, err := pe.optimizeBytes(asm.Data)
		if err != nil {
			asm.warn("optimization failed, output left unoptimized: %v", err)
		}
		asm.Data = data
	}

	pe.logger.WithFields(
		"pages_copied", asm.Stats.PagesCopied,
		"text_layers", asm.Stats.TextLayers,
		"words_drawn", asm.Stats.WordsDrawn,
		"words_skipped", asm.Stats.WordsSkipped,
		"bytes", len(asm.Data),
	).Info("Assembled PDF")

	return asm, nil
}

func (pe *PDFEnhancer) overlay(ctx context.Context, original []byte, pages []ocr.PageResult) (*Assembly, error) {
	dims, err := pe.geometry.PageDims(original)
	if err != nil {
		return nil, fmt.Errorf("failed to read original page sizes: %w", err)
	}

	byPage := make(map[int]*ocr.PageResult, len(pages))
	var ignored []int
	for i := range pages {
		p := &pages[i]
		if p.PageNumber < 1 || p.PageNumber > len(dims) {
			pe.logger.WithPage(p.PageNumber).Warn("Recognition result for a page outside the document, ignoring")
			ignored = append(ignored, p.PageNumber)
			continue
		}
		byPage[p.PageNumber] = p
	}

	w, err := pe.newWriter(original)
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF writer: %w", err)
	}

	asm := &Assembly{}
	for _, pageNum := range ignored {
		asm.warn("page %d: recognition result outside the %d-page document ignored", pageNum, len(dims))
	}
	for i, d := range dims {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageNum := i + 1
		if err := w.CopyPage(pageNum, d.Width, d.Height); err != nil {
			return nil, fmt.Errorf("failed to copy page %d: %w", pageNum, err)
		}
		asm.Stats.PagesCopied++

		result, ok := byPage[pageNum]
		if !ok {
			continue
		}

		log := pe.logger.WithPage(pageNum)
		if result.Width <= 0 || result.Height <= 0 {
			log.WithFields("width", result.Width, "height", result.Height).
				Warn("Invalid recognition dimensions, skipping text layer")
			asm.warn("page %d: invalid recognition dimensions %dx%d, text layer skipped",
				pageNum, result.Width, result.Height)
			continue
		}

		frame := Frame{
			ScaleX:     d.Width / float64(result.Width),
			ScaleY:     d.Height / float64(result.Height),
			PageHeight: d.Height,
		}
		if err := pe.drawLayer(w, result, frame, 0, &asm.Stats); err != nil {
			return nil, fmt.Errorf("failed to draw text on page %d: %w", pageNum, err)
		}
		asm.Stats.TextLayers++
	}

	asm.Data, err = w.Bytes()
	if err != nil {
		return nil, err
	}
	return asm, nil
}

func (pe *PDFEnhancer) textOnly(ctx context.Context, pages []ocr.PageResult) (*Assembly, error) {
	w, err := pe.newWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF writer: %w", err)
	}

	asm := &Assembly{}
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := &pages[i]
		width, height := float64(result.Width), float64(result.Height)
		if result.Width <= 0 || result.Height <= 0 {
			width, height = FallbackPageWidth, FallbackPageHeight
		}

		if err := w.AddPage(width, height); err != nil {
			return nil, fmt.Errorf("failed to add page for page %d: %w", result.PageNumber, err)
		}

		frame := Frame{ScaleX: 1, ScaleY: 1, PageHeight: height}
		if err := pe.drawLayer(w, result, frame, 1, &asm.Stats); err != nil {
			return nil, fmt.Errorf("failed to draw text on page %d: %w", result.PageNumber, err)
		}
		asm.Stats.TextLayers++
	}

	asm.Data, err = w.Bytes()
	if err != nil {
		return nil, err
	}
	return asm, nil
}

// drawLayer places every reconstructed token of a page
func (pe *PDFEnhancer) drawLayer(w Writer, result *ocr.PageResult, frame Frame, opacity float64, stats *Stats) error {
	tokens := pe.layout.Reconstruct(result.Words)

	drawn := 0
	for _, tok := range tokens {
		glyph, ok := pe.placement.Place(tok, frame, w.MeasureText)
		if !ok {
			stats.WordsSkipped++
			continue
		}
		if err := w.DrawText(glyph.Text, glyph.X, glyph.Y, glyph.Size, opacity); err != nil {
			return err
		}
		drawn++
	}
	stats.WordsDrawn += drawn

	pe.logger.WithPage(result.PageNumber).
		WithFields("tokens", len(tokens), "drawn", drawn).
		Debug("Added text layer")
	return nil
}

// optimizeBytes returns data unchanged, with the cause, when optimization fails
func (pe *PDFEnhancer) optimizeBytes(data []byte) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var buf bytes.Buffer
	if err := optimize(bytes.NewReader(data), &buf, conf); err != nil {
		pe.logger.WithError(err).Warn("PDF optimization failed, keeping unoptimized output")
		return data, err
	}
	if buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), nil
}

func optimize(rs *bytes.Reader, buf *bytes.Buffer, conf *model.Configuration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	return api.Optimize(rs, buf, conf)
}
