// Package testutil builds PDF and image fixtures for tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"codeberg.org/go-pdf/fpdf"
)

// TestingT is the subset of testing.T the fixture builders need
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Page describes one fixture page. Text, when set, is written as real
// selectable text; Image, when set, covers the whole page like a scan.
type Page struct {
	Width  float64
	Height float64
	Text   string
	Image  []byte
}

// ScannedPage returns a letter-size page holding only an image
func ScannedPage(t TestingT) Page {
	t.Helper()
	return Page{Width: 612, Height: 792, Image: PNG(t, 306, 396)}
}

// TextPage returns a letter-size page with selectable text
func TextPage(text string) Page {
	return Page{Width: 612, Height: 792, Text: text}
}

// PDF renders pages into a PDF document
func PDF(t TestingT, pages ...Page) []byte {
	t.Helper()

	// a 1x1 default keeps fpdf writing an explicit MediaBox for every page
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: 1, Ht: 1},
	})
	doc.SetFont("Helvetica", "", 12)

	for i, page := range pages {
		doc.AddPageFormat("P", fpdf.SizeType{Wd: page.Width, Ht: page.Height})

		if len(page.Image) > 0 {
			name := fmt.Sprintf("scan%d", i)
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(page.Image))
			doc.ImageOptions(name, 0, 0, page.Width, page.Height, false, opts, 0, "")
		}
		if page.Text != "" {
			doc.Text(72, 72, page.Text)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("failed to build fixture PDF: %v", err)
	}
	return buf.Bytes()
}

// PNG encodes a white image with a dark bar across the top third
func PNG(t TestingT, width, height int) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.Gray{Y: 255}
			if y > height/6 && y < height/3 && x > width/10 && x < width*9/10 {
				c = color.Gray{Y: 20}
			}
			img.SetGray(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture PNG: %v", err)
	}
	return buf.Bytes()
}
