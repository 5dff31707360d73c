package pdfenhancer

import (
	"math"

	"github.com/platinummonkey/searchable/internal/layout"
)

// Placement holds the constants that position invisible text over a scan.
// They are empirical and meant to be calibrated against real scans.
type Placement struct {
	// BaselineRatio lifts the baseline above the box bottom by this share of the box height
	BaselineRatio float64 `mapstructure:"baseline-ratio"`

	// HeightFontRatio caps the font size at this share of the box height
	HeightFontRatio float64 `mapstructure:"height-font-ratio"`

	// MinFontSize is the smallest size text is drawn at
	MinFontSize float64 `mapstructure:"min-font-size"`

	// MinDrawSize is the fitted size a word must exceed to be drawn at all
	MinDrawSize float64 `mapstructure:"min-draw-size"`

	// ReferenceSize is the font size text is measured at
	ReferenceSize float64 `mapstructure:"reference-size"`
}

// DefaultPlacement returns the standard placement constants
func DefaultPlacement() Placement {
	return Placement{
		BaselineRatio:   0.2,
		HeightFontRatio: 0.9,
		MinFontSize:     4,
		MinDrawSize:     1,
		ReferenceSize:   12,
	}
}

func (p Placement) withDefaults() Placement {
	d := DefaultPlacement()
	if p.BaselineRatio == 0 {
		p.BaselineRatio = d.BaselineRatio
	}
	if p.HeightFontRatio == 0 {
		p.HeightFontRatio = d.HeightFontRatio
	}
	if p.MinFontSize == 0 {
		p.MinFontSize = d.MinFontSize
	}
	if p.MinDrawSize == 0 {
		p.MinDrawSize = d.MinDrawSize
	}
	if p.ReferenceSize == 0 {
		p.ReferenceSize = d.ReferenceSize
	}
	return p
}

// Glyph is a token positioned in PDF point space
type Glyph struct {
	Text string
	X    float64
	Y    float64
	Size float64
}

// Frame maps recognition pixels onto a page
type Frame struct {
	ScaleX     float64
	ScaleY     float64
	PageHeight float64
}

// Place positions a token. measure returns the text width at a font size.
// The second result is false when the token must not be drawn.
func (p Placement) Place(tok layout.Token, f Frame, measure func(text string, size float64) float64) (Glyph, bool) {
	x := tok.BBox.X0 * f.ScaleX
	width := tok.BBox.Width() * f.ScaleX
	height := tok.BBox.Height() * f.ScaleY
	y := f.PageHeight - tok.BBox.Y1*f.ScaleY + height*p.BaselineRatio

	measured := measure(tok.RawText, p.ReferenceSize)
	if !positive(measured) || !positive(width) || !positive(height) || !finite(x) || !finite(y) {
		return Glyph{}, false
	}

	size := math.Min(width/measured*p.ReferenceSize, height*p.HeightFontRatio)
	if !(size > p.MinDrawSize) {
		return Glyph{}, false
	}

	return Glyph{
		Text: tok.Text,
		X:    x,
		Y:    y,
		Size: math.Max(size, p.MinFontSize),
	}, true
}

func positive(v float64) bool {
	return v > 0 && finite(v)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
