package converter

import (
	"errors"
	"time"

	"github.com/platinummonkey/searchable/internal/ocr"
	"github.com/platinummonkey/searchable/internal/pdfenhancer"
)

// Conversion error kinds. Engine failures surface as *ocr.EngineInitError
// and *ocr.RecognitionError; unreadable documents as pdfinfo.ErrInvalidDocument.
var (
	// ErrEmptyDocument is returned for documents with zero pages
	ErrEmptyDocument = errors.New("PDF has no pages")

	// ErrPageLimitExceeded is returned when the page count exceeds Options.MaxPages
	ErrPageLimitExceeded = errors.New("page limit exceeded")

	// ErrPageCountMismatch is returned when streamed images or recognized
	// pages disagree with the document's page count
	ErrPageCountMismatch = errors.New("page extraction mismatch")

	// ErrPageSource is returned when the page image source fails
	ErrPageSource = errors.New("page image source failed")

	// ErrAssembly is returned when the output document cannot be built
	ErrAssembly = errors.New("failed to assemble searchable PDF")
)

// State is a conversion lifecycle state
type State string

const (
	StateIdle        State = "idle"
	StateInspecting  State = "inspecting"
	StateRecognizing State = "recognizing"
	StateAssembling  State = "assembling"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Stage names reported through ProgressFunc
const (
	StageExtracting  = "extracting"
	StageRecognizing = "recognizing"
	StageAssembling  = "assembling"
)

// Progress is an advisory progress event
type Progress struct {
	Stage       string
	CurrentPage int
	TotalPages  int
	Percentage  int
}

// ProgressFunc receives progress events. It must not block for long.
type ProgressFunc func(Progress)

// DefaultLanguage is the recognition language used when Options.Language is empty
const DefaultLanguage = ocr.DefaultLanguage

// Options controls a single conversion
type Options struct {
	// Language is the recognition language code (default: eng)
	Language string

	// PreserveImages keeps the original pages and overlays invisible text.
	// nil means true.
	PreserveImages *bool

	// MaxPages rejects larger documents before any page is processed (0 = unlimited)
	MaxPages int

	// Progress receives optional progress events
	Progress ProgressFunc
}

// Bool returns a pointer to b, for Options.PreserveImages
func Bool(b bool) *bool {
	return &b
}

func (o Options) language() string {
	if o.Language == "" {
		return DefaultLanguage
	}
	return o.Language
}

func (o Options) preserveImages() bool {
	return o.PreserveImages == nil || *o.PreserveImages
}

// Outcome is the result of a conversion. On failure Output is nil and Pages
// holds whatever was recognized before the failure.
type Outcome struct {
	// JobID identifies the conversion in logs
	JobID string `json:"job_id" yaml:"job_id"`

	// Success indicates if conversion completed successfully
	Success bool `json:"success" yaml:"success"`

	// State is the final state (done or failed)
	State State `json:"state" yaml:"state"`

	// PageCount is the number of pages in the original document, once known
	PageCount int `json:"page_count" yaml:"page_count"`

	// Pages holds per-page recognition results in page order
	Pages []ocr.PageResult `json:"pages" yaml:"-"`

	// Output is the assembled document
	Output []byte `json:"-" yaml:"-"`

	// Stats describes the assembled document
	Stats pdfenhancer.Stats `json:"stats" yaml:"stats"`

	// Error contains the error message if Success is false
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Err is the failure cause, for errors.Is and errors.As
	Err error `json:"-" yaml:"-"`

	// Warnings contains degraded, non-fatal conditions
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Duration is the time taken for conversion
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// NewOutcome creates an empty, unsuccessful outcome
func NewOutcome(jobID string) *Outcome {
	return &Outcome{
		JobID:    jobID,
		State:    StateIdle,
		Pages:    []ocr.PageResult{},
		Warnings: []string{},
	}
}

// AddWarning adds a warning message to the outcome
func (o *Outcome) AddWarning(warning string) {
	o.Warnings = append(o.Warnings, warning)
}

// SetError marks the conversion as failed
func (o *Outcome) SetError(err error) {
	o.Success = false
	o.State = StateFailed
	o.Output = nil
	o.Err = err
	o.Error = err.Error()
}

// SetSuccess marks the conversion as successful
func (o *Outcome) SetSuccess(asm *pdfenhancer.Assembly) {
	o.Success = true
	o.State = StateDone
	o.Output = asm.Data
	o.Stats = asm.Stats
	o.Warnings = append(o.Warnings, asm.Warnings...)
	o.Err = nil
	o.Error = ""
}

// WordCount returns the number of recognized words across all pages
func (o *Outcome) WordCount() int {
	n := 0
	for i := range o.Pages {
		n += len(o.Pages[i].Words)
	}
	return n
}

// Confidence returns the mean word confidence across all pages, or 0
func (o *Outcome) Confidence() float64 {
	var sum float64
	n := 0
	for i := range o.Pages {
		for _, w := range o.Pages[i].Words {
			sum += w.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
