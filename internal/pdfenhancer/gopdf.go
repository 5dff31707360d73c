package pdfenhancer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/goregular"
)

const gopdfFont = "goregular"

// gopdf has no glyphs for layout control characters
var controlReplacer = strings.NewReplacer("\n", " ", "\t", " ", "\r", " ")

// GopdfWriter writes with gopdf using an embedded Go Regular TrueType font,
// which covers Latin, Greek and Cyrillic text.
type GopdfWriter struct {
	pdf    *gopdf.GoPdf
	source io.ReadSeeker
	pageH  float64
	pages  int
}

// NewGopdfWriter creates a WriterFactory-compatible gopdf writer
func NewGopdfWriter(source []byte) (Writer, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{
		PageSize: *gopdf.PageSizeLetter,
		Unit:     gopdf.UnitPT,
	})

	if err := pdf.AddTTFFontData(gopdfFont, goregular.TTF); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	w := &GopdfWriter{pdf: pdf}
	if source != nil {
		w.source = bytes.NewReader(source)
	}
	return w, nil
}

// CopyPage implements Writer
func (w *GopdfWriter) CopyPage(pageNumber int, width, height float64) (err error) {
	if w.source == nil {
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

	tpl := w.pdf.ImportPageStream(&w.source, pageNumber, "/MediaBox")
	w.pdf.UseImportedTemplate(tpl, 0, 0, width, height)
	return nil
}

// AddPage implements Writer
func (w *GopdfWriter) AddPage(width, height float64) error {
	w.pdf.AddPageWithOption(gopdf.PageOption{
		PageSize: &gopdf.Rect{W: width, H: height},
	})
	w.pageH = height
	w.pages++
	return nil
}

// MeasureText implements Writer
func (w *GopdfWriter) MeasureText(text string, size float64) float64 {
	if err := w.pdf.SetFont(gopdfFont, "", size); err != nil {
		return 0
	}
	width, err := w.pdf.MeasureTextWidth(controlReplacer.Replace(text))
	if err != nil {
		return 0
	}
	return width
}

// DrawText implements Writer
func (w *GopdfWriter) DrawText(text string, x, y, size, opacity float64) error {
	if w.pages == 0 {
		return fmt.Errorf("no page to draw on")
	}

	if err := w.pdf.SetFont(gopdfFont, "", size); err != nil {
		return fmt.Errorf("failed to set font: %w", err)
	}
	if err := w.pdf.SetTransparency(gopdf.Transparency{
		Alpha:         opacity,
		BlendModeType: gopdf.NormalBlendMode,
	}); err != nil {
		return fmt.Errorf("failed to set opacity: %w", err)
	}

	w.pdf.SetXY(x, w.pageH-y)
	if err := w.pdf.Text(controlReplacer.Replace(text)); err != nil {
		return fmt.Errorf("failed to draw text: %w", err)
	}
	w.pdf.ClearTransparency()
	return nil
}

// Bytes implements Writer
func (w *GopdfWriter) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
