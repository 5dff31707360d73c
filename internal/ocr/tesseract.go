package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs recognition with a single long-lived tesseract client
type TesseractEngine struct {
	client   *gosseract.Client
	language string
}

// NewTesseractEngine creates a tesseract client for language ("eng", "eng+deu").
// Languages without installed traineddata are rejected here rather than on
// the first page.
func NewTesseractEngine(language string) (Engine, error) {
	langs := strings.Split(language, "+")

	available, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("failed to list tesseract languages: %w", err)
	}
	installed := make(map[string]bool, len(available))
	for _, l := range available {
		installed[l] = true
	}
	for _, l := range langs {
		if !installed[l] {
			return nil, fmt.Errorf("tesseract language data %q is not installed", l)
		}
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(langs...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	return &TesseractEngine{client: client, language: language}, nil
}

// Recognize implements Engine using tesseract's hOCR output for word boxes
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte) (*EngineOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image data: %w", err)
	}

	hocr, err := e.client.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("failed to get hOCR text: %w", err)
	}

	blocks, err := parseHOCR(hocr)
	if err != nil {
		return nil, err
	}

	text, err := e.client.Text()
	if err != nil {
		return nil, fmt.Errorf("failed to get plain text: %w", err)
	}

	return &EngineOutput{Text: text, Blocks: blocks}, nil
}

// Close implements Engine
func (e *TesseractEngine) Close() error {
	return e.client.Close()
}
