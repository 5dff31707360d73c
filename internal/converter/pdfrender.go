package converter

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"sync"

	"github.com/platinummonkey/searchable/internal/logger"
	"github.com/unidoc/unipdf/v3/common"
	"github.com/unidoc/unipdf/v3/common/license"
	unipdf "github.com/unidoc/unipdf/v3/model"
	"github.com/unidoc/unipdf/v3/render"
)

// DefaultDPI is the rasterization resolution used when none is configured
const DefaultDPI = 300

var licenseOnce sync.Once

func init() {
	common.SetLogger(common.NewConsoleLogger(common.LogLevelError))
}

// SetRenderLicense installs a unidoc metered license key. Only the first
// call has an effect.
func SetRenderLicense(key string) error {
	var err error
	licenseOnce.Do(func() {
		err = license.SetMeteredKey(key)
	})
	return err
}

// Renderer rasterizes the pages of a PDF to PNG images with unipdf. Pages
// are rendered lazily, one per Next call.
type Renderer struct {
	logger *logger.Logger
	data   []byte
	dpi    int

	reader   *unipdf.PdfReader
	numPages int
	next     int
}

// NewRenderer creates a renderer for data at dpi (0 = DefaultDPI)
func NewRenderer(data []byte, dpi int, log *logger.Logger) *Renderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if log == nil {
		log = logger.Get()
	}
	return &Renderer{logger: log, data: data, dpi: dpi, next: 1}
}

// Next implements PageSource
func (r *Renderer) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.reader == nil {
		if err := r.open(); err != nil {
			return nil, err
		}
	}
	if r.next > r.numPages {
		return nil, io.EOF
	}

	pageNum := r.next
	r.next++
	return r.renderPage(pageNum)
}

func (r *Renderer) open() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("unipdf panic: %v", rec)
		}
	}()

	reader, err := unipdf.NewPdfReaderLazy(bytes.NewReader(r.data))
	if err != nil {
		return fmt.Errorf("failed to create PDF reader: %w", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return fmt.Errorf("failed to get page count: %w", err)
	}

	r.reader = reader
	r.numPages = numPages
	return nil
}

// renderPage renders a 1-based page to PNG
func (r *Renderer) renderPage(pageNum int) (data []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("unipdf panic rendering page %d: %v", pageNum, rec)
		}
	}()

	log := r.logger.WithPage(pageNum)
	defer log.Timed("render")()

	page, err := r.reader.GetPage(pageNum)
	if err != nil {
		return nil, fmt.Errorf("failed to get page %d: %w", pageNum, err)
	}

	mediaBox, err := page.GetMediaBox()
	if err != nil {
		return nil, fmt.Errorf("failed to get media box of page %d: %w", pageNum, err)
	}

	// pixels = points * DPI / 72; height follows the aspect ratio
	device := render.NewImageDevice()
	device.OutputWidth = int((mediaBox.Urx - mediaBox.Llx) * float64(r.dpi) / 72.0)

	img, err := device.Render(page)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page %d: %w", pageNum, err)
	}

	bounds := img.Bounds()
	log.WithFields("width", bounds.Dx(), "height", bounds.Dy(), "dpi", r.dpi).Debug("Rendered page")
	return buf.Bytes(), nil
}
