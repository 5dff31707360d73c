package pdfenhancer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"golang.org/x/text/encoding/charmap"
)

const fpdfFont = "Helvetica"

// fpdf omits the MediaBox of pages matching the document default size, so
// the default is a size no real page has and every page carries its own box.
var fpdfPlaceholderSize = fpdf.SizeType{Wd: 1, Ht: 1}

// FpdfWriter writes with fpdf, importing source pages through gofpdi.
// The core Helvetica font only covers Windows-1252; other runes become '?'.
type FpdfWriter struct {
	pdf      *fpdf.Fpdf
	importer *gofpdi.Importer
	source   io.ReadSeeker
	pageH    float64
	pages    int
}

// NewFpdfWriter creates a WriterFactory-compatible fpdf writer
func NewFpdfWriter(source []byte) (Writer, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdfPlaceholderSize,
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetFont(fpdfFont, "", 12)
	if pdf.Err() {
		return nil, fmt.Errorf("failed to initialize fpdf: %w", pdf.Error())
	}

	w := &FpdfWriter{pdf: pdf}
	if source != nil {
		w.importer = gofpdi.NewImporter()
		w.source = bytes.NewReader(source)
	}
	return w, nil
}

// CopyPage implements Writer
func (w *FpdfWriter) CopyPage(pageNumber int, width, height float64) (err error) {
	if w.importer == nil {
		return fmt.Errorf("no source document to copy page %d from", pageNumber)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to import page %d: %v", pageNumber, r)
		}
	}()

	if err := w.AddPage(width, height); err != nil {
		return err
	}

	tpl := w.importer.ImportPageFromStream(w.pdf, &w.source, pageNumber, "/MediaBox")
	w.importer.UseImportedTemplate(w.pdf, tpl, 0, 0, width, height)
	if w.pdf.Err() {
		return fmt.Errorf("failed to import page %d: %w", pageNumber, w.pdf.Error())
	}
	return nil
}

// AddPage implements Writer
func (w *FpdfWriter) AddPage(width, height float64) error {
	w.pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})
	if w.pdf.Err() {
		return fmt.Errorf("failed to add page: %w", w.pdf.Error())
	}
	w.pageH = height
	w.pages++
	return nil
}

// MeasureText implements Writer
func (w *FpdfWriter) MeasureText(text string, size float64) float64 {
	w.pdf.SetFontSize(size)
	return w.pdf.GetStringWidth(encodeWindows1252(text))
}

// DrawText implements Writer
func (w *FpdfWriter) DrawText(text string, x, y, size, opacity float64) error {
	if w.pages == 0 {
		return fmt.Errorf("no page to draw on")
	}

	w.pdf.SetFontSize(size)
	w.pdf.SetAlpha(opacity, "Normal")
	w.pdf.Text(x, w.pageH-y, encodeWindows1252(text))
	if w.pdf.Err() {
		return fmt.Errorf("failed to draw text: %w", w.pdf.Error())
	}
	return nil
}

// Bytes implements Writer
func (w *FpdfWriter) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeWindows1252 converts UTF-8 text to the single-byte encoding of the
// core fonts
func encodeWindows1252(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
