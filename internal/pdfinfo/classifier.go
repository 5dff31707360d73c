// Package pdfinfo inspects an existing PDF before any expensive work is done:
// page sizes in points and whether each page already carries selectable text.
package pdfinfo

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/searchable/internal/logger"
)

// PageGeometry describes one page of the original document
type PageGeometry struct {
	// Width is the page width in PDF points
	Width float64

	// Height is the page height in PDF points
	Height float64

	// HasSelectableText is true when the page already contains real text
	HasSelectableText bool
}

// Classification is the result of Classify
type Classification struct {
	Pages []PageGeometry

	// Warnings lists degraded, non-fatal conditions met while classifying
	Warnings []string
}

// Classifier produces a PageGeometry per page
type Classifier struct {
	logger   *logger.Logger
	geometry GeometryReader
	text     TextReader
}

// Config holds configuration for the classifier
type Config struct {
	Logger *logger.Logger

	// Geometry defaults to PdfcpuReader
	Geometry GeometryReader

	// Text defaults to LedongthucTextReader
	Text TextReader
}

// New creates a new classifier
func New(cfg *Config) *Classifier {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	c := &Classifier{
		logger:   log,
		geometry: cfg.Geometry,
		text:     cfg.Text,
	}
	if c.geometry == nil {
		c.geometry = PdfcpuReader{}
	}
	if c.text == nil {
		c.text = LedongthucTextReader{}
	}
	return c
}

// Geometry returns the reader used for page dimensions
func (c *Classifier) Geometry() GeometryReader {
	return c.geometry
}

// Classify returns one entry per page in page order. Failing to read the
// container is an error; failing to inspect text is not: every page is then
// marked as lacking text and a warning is added to the result.
func (c *Classifier) Classify(ctx context.Context, data []byte) (*Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dims, err := c.geometry.PageDims(data)
	if err != nil {
		return nil, err
	}

	pages := make([]PageGeometry, len(dims))
	for i, d := range dims {
		pages[i] = PageGeometry{Width: d.Width, Height: d.Height}
	}
	result := &Classification{Pages: pages}
	if len(pages) == 0 {
		return result, nil
	}

	fragments, err := c.text.TextFragments(data)
	if err == nil && len(fragments) != len(pages) {
		err = fmt.Errorf("text reader found %d pages, geometry reader found %d", len(fragments), len(pages))
	}
	if err != nil {
		err = fmt.Errorf("selectable text detection failed, recognizing every page: %w", err)
		c.logger.WithError(err).Warn("Page classification degraded")
		result.Warnings = append(result.Warnings, err.Error())
		return result, nil
	}

	withText := 0
	for i := range pages {
		pages[i].HasSelectableText = hasText(fragments[i])
		if pages[i].HasSelectableText {
			withText++
		}
	}

	c.logger.WithFields("pages", len(pages), "with_text", withText).Debug("Classified pages")
	return result, nil
}

// hasText reports whether any fragment has non-whitespace content
func hasText(fragments []string) bool {
	for _, f := range fragments {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}
