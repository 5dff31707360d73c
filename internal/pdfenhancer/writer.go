package pdfenhancer

import (
	"fmt"
	"sort"
	"strings"
)

// Writer is a PDF container writer. Coordinates are PDF point space with
// the origin at the bottom-left corner of the current page; y is the text
// baseline.
type Writer interface {
	// CopyPage appends page pageNumber (1-based) of the source document,
	// drawn at w x h points
	CopyPage(pageNumber int, w, h float64) error

	// AddPage appends a blank w x h page
	AddPage(w, h float64) error

	// MeasureText returns the width of text at the given font size, or 0
	// when the text cannot be rendered with the writer's font
	MeasureText(text string, size float64) float64

	// DrawText writes text on the current page
	DrawText(text string, x, y, size, opacity float64) error

	// Bytes serializes the document
	Bytes() ([]byte, error)
}

// WriterFactory creates a Writer. source is the original document for
// CopyPage and may be nil for documents built from blank pages.
type WriterFactory func(source []byte) (Writer, error)

// Writer names accepted by WriterByName
const (
	WriterFpdf  = "fpdf"
	WriterGopdf = "gopdf"
)

var writers = map[string]WriterFactory{
	WriterFpdf:  NewFpdfWriter,
	WriterGopdf: NewGopdfWriter,
}

// WriterByName returns the factory registered under name
func WriterByName(name string) (WriterFactory, error) {
	factory, ok := writers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown PDF writer %q (available: %s)", name, strings.Join(WriterNames(), ", "))
	}
	return factory, nil
}

// WriterNames lists the registered writer names
func WriterNames() []string {
	names := make([]string, 0, len(writers))
	for name := range writers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
