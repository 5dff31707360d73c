package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrInvalidDocument is returned when the PDF container cannot be read
var ErrInvalidDocument = errors.New("invalid PDF document")

// Dim is a page size in PDF points
type Dim struct {
	Width  float64
	Height float64
}

// GeometryReader loads per-page point dimensions from a PDF container
type GeometryReader interface {
	PageDims(data []byte) ([]Dim, error)
}

// TextReader lists the embedded text fragments of every page, in page order
type TextReader interface {
	TextFragments(data []byte) ([][]string, error)
}

// PdfcpuReader reads page geometry with pdfcpu
type PdfcpuReader struct{}

// DocumentInfo summarizes a PDF container
type DocumentInfo struct {
	PageCount int
	Version   string
	Encrypted bool
	Pages     []Dim
}

// Inspect reads and validates the container in relaxed mode
func (PdfcpuReader) Inspect(data []byte) (info *DocumentInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("%w: pdfcpu panic: %v", ErrInvalidDocument, r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	pageDims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read page dimensions: %v", ErrInvalidDocument, err)
	}
	if len(pageDims) != ctx.PageCount {
		return nil, fmt.Errorf("%w: %d page dimensions for %d pages", ErrInvalidDocument, len(pageDims), ctx.PageCount)
	}

	info = &DocumentInfo{
		PageCount: ctx.PageCount,
		Version:   "unknown",
		Encrypted: ctx.Encrypt != nil,
		Pages:     make([]Dim, len(pageDims)),
	}
	if ctx.HeaderVersion != nil {
		info.Version = ctx.HeaderVersion.String()
	}
	for i, d := range pageDims {
		info.Pages[i] = Dim{Width: d.Width, Height: d.Height}
	}
	return info, nil
}

// PageDims implements GeometryReader
func (r PdfcpuReader) PageDims(data []byte) ([]Dim, error) {
	info, err := r.Inspect(data)
	if err != nil {
		return nil, err
	}
	return info.Pages, nil
}

// LedongthucTextReader extracts text content streams with github.com/ledongthuc/pdf
type LedongthucTextReader struct{}

// TextFragments implements TextReader. The parser panics on some malformed
// content streams; that is reported as an error.
func (LedongthucTextReader) TextFragments(data []byte) (pages [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("text content parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for text extraction: %w", err)
	}

	numPages := reader.NumPage()
	pages = make([][]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		content := page.Content()
		fragments := make([]string, 0, len(content.Text))
		for _, text := range content.Text {
			fragments = append(fragments, text.S)
		}
		pages[i-1] = fragments
	}

	return pages, nil
}

// HasPDFHeader reports whether data starts with the %PDF- magic
func HasPDFHeader(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
