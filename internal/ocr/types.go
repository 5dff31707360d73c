package ocr

import (
	"math"
	"strings"
)

// BBox is an axis-aligned rectangle in recognition-image pixel space.
// The origin is the top-left corner of the image and Y grows downward.
type BBox struct {
	X0 float64 `json:"x0" yaml:"x0"`
	Y0 float64 `json:"y0" yaml:"y0"`
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
}

// NewBBox creates a bounding box from its top-left and bottom-right corners
func NewBBox(x0, y0, x1, y1 float64) BBox {
	return BBox{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Width returns X1 - X0
func (b BBox) Width() float64 {
	return b.X1 - b.X0
}

// Height returns Y1 - Y0
func (b BBox) Height() float64 {
	return b.Y1 - b.Y0
}

// CenterY returns the vertical center of the box
func (b BBox) CenterY() float64 {
	return (b.Y0 + b.Y1) / 2
}

// Valid reports whether all coordinates are finite and the box has positive area
func (b BBox) Valid() bool {
	for _, v := range []float64{b.X0, b.Y0, b.X1, b.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 > b.X0 && b.Y1 > b.Y0
}

// Word is a single recognized word with its bounding box
type Word struct {
	// Text is the recognized text content
	Text string `json:"text" yaml:"text"`

	// Confidence is the engine's recognition confidence (0-100)
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// BBox locates the word in the page image
	BBox BBox `json:"bbox" yaml:"bbox"`
}

// NewWord creates a new Word
func NewWord(text string, confidence float64, bbox BBox) Word {
	return Word{Text: text, Confidence: confidence, BBox: bbox}
}

// Valid reports whether the word can take part in layout reconstruction:
// non-blank text and a finite, non-degenerate box.
func (w Word) Valid() bool {
	return strings.TrimSpace(w.Text) != "" && w.BBox.Valid()
}

// PageResult holds the recognition output for one page image.
// It is created once per recognized page and not modified afterwards.
type PageResult struct {
	// PageNumber is the 1-based page number in the source document
	PageNumber int `json:"page_number" yaml:"page_number"`

	// Width is the recognition image width in pixels
	Width int `json:"width" yaml:"width"`

	// Height is the recognition image height in pixels
	Height int `json:"height" yaml:"height"`

	// Words is the flat list of recognized words
	Words []Word `json:"words" yaml:"words"`

	// FullText is the engine's own plain-text rendition of the page
	FullText string `json:"full_text" yaml:"full_text"`
}

// Confidence returns the mean word confidence, or 0 when there are no words
func (p *PageResult) Confidence() float64 {
	if len(p.Words) == 0 {
		return 0
	}

	total := 0.0
	for _, word := range p.Words {
		total += word.Confidence
	}
	return total / float64(len(p.Words))
}

// ValidWords returns the number of words that pass Word.Valid
func (p *PageResult) ValidWords() int {
	n := 0
	for _, word := range p.Words {
		if word.Valid() {
			n++
		}
	}
	return n
}
