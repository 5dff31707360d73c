package pdfinfo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/platinummonkey/searchable/internal/logger"
	"github.com/platinummonkey/searchable/internal/testutil"
)

type fakeGeometry struct {
	dims []Dim
	err  error
}

func (f fakeGeometry) PageDims([]byte) ([]Dim, error) { return f.dims, f.err }

type fakeText struct {
	pages [][]string
	err   error
	calls int
}

func (f *fakeText) TextFragments([]byte) ([][]string, error) {
	f.calls++
	return f.pages, f.err
}

func TestNew_Defaults(t *testing.T) {
	c := New(nil)
	if c.logger == nil {
		t.Error("logger should be initialized")
	}
	if _, ok := c.geometry.(PdfcpuReader); !ok {
		t.Errorf("default geometry reader = %T, want PdfcpuReader", c.geometry)
	}
	if _, ok := c.text.(LedongthucTextReader); !ok {
		t.Errorf("default text reader = %T, want LedongthucTextReader", c.text)
	}
}

func TestClassify_MixedDocument(t *testing.T) {
	data := testutil.PDF(t,
		testutil.ScannedPage(t),
		testutil.TextPage("Invoice 42"),
		testutil.Page{Width: 300, Height: 400, Image: testutil.PNG(t, 150, 200)},
	)

	c := New(&Config{Logger: logger.NewNop()})
	result, err := c.Classify(context.Background(), data)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", result.Warnings)
	}

	pages := result.Pages
	want := []PageGeometry{
		{Width: 612, Height: 792, HasSelectableText: false},
		{Width: 612, Height: 792, HasSelectableText: true},
		{Width: 300, Height: 400, HasSelectableText: false},
	}
	if len(pages) != len(want) {
		t.Fatalf("got %d pages, want %d", len(pages), len(want))
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("page %d = %+v, want %+v", i+1, pages[i], want[i])
		}
	}
}

func TestClassify_InvalidDocument(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not a pdf", []byte("hello world")},
		{"truncated", []byte("%PDF-1.4\n1 0 obj\n<<")},
	}

	c := New(&Config{Logger: logger.NewNop()})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Classify(context.Background(), tt.data)
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("Classify() error = %v, want ErrInvalidDocument", err)
			}
		})
	}
}

func TestClassify_TextDetectionDegrades(t *testing.T) {
	dims := []Dim{{612, 792}, {612, 792}}

	tests := []struct {
		name string
		text *fakeText
	}{
		{"reader error", &fakeText{err: errors.New("broken content stream")}},
		{"page count disagreement", &fakeText{pages: [][]string{{"a"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&Config{
				Logger:   logger.NewNop(),
				Geometry: fakeGeometry{dims: dims},
				Text:     tt.text,
			})

			result, err := c.Classify(context.Background(), []byte("%PDF-"))
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			pages := result.Pages
			if len(pages) != 2 {
				t.Fatalf("got %d pages, want 2", len(pages))
			}
			for i, p := range pages {
				if p.HasSelectableText {
					t.Errorf("page %d should be marked as needing recognition", i+1)
				}
			}
			if len(result.Warnings) != 1 {
				t.Fatalf("got %d warnings, want 1", len(result.Warnings))
			}
			if !strings.Contains(result.Warnings[0], "selectable text detection failed") {
				t.Errorf("warning = %q", result.Warnings[0])
			}
		})
	}
}

func TestClassify_WhitespaceIsNotText(t *testing.T) {
	c := New(&Config{
		Logger:   logger.NewNop(),
		Geometry: fakeGeometry{dims: []Dim{{100, 100}, {100, 100}, {100, 100}}},
		Text:     &fakeText{pages: [][]string{{" ", "\n\t"}, nil, {"", "x"}}},
	})

	result, err := c.Classify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	want := []bool{false, false, true}
	for i, p := range result.Pages {
		if p.HasSelectableText != want[i] {
			t.Errorf("page %d HasSelectableText = %v, want %v", i+1, p.HasSelectableText, want[i])
		}
	}
}

func TestClassify_EmptyDocumentSkipsTextReader(t *testing.T) {
	text := &fakeText{}
	c := New(&Config{
		Logger:   logger.NewNop(),
		Geometry: fakeGeometry{dims: []Dim{}},
		Text:     text,
	})

	result, err := c.Classify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(result.Pages) != 0 {
		t.Errorf("got %d pages, want 0", len(result.Pages))
	}
	if text.calls != 0 {
		t.Errorf("text reader called %d times, want 0", text.calls)
	}
}

func TestClassify_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(&Config{Logger: logger.NewNop()})
	if _, err := c.Classify(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Classify() error = %v, want context.Canceled", err)
	}
}

func TestInspect(t *testing.T) {
	data := testutil.PDF(t, testutil.ScannedPage(t), testutil.TextPage("x"))

	info, err := PdfcpuReader{}.Inspect(data)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", info.PageCount)
	}
	if info.Encrypted {
		t.Error("fixture should not be encrypted")
	}
	if info.Version == "" {
		t.Error("Version should be set")
	}
}

func TestHasPDFHeader(t *testing.T) {
	tests := []struct {
		data []byte
		want bool
	}{
		{[]byte("%PDF-1.7\n"), true},
		{[]byte("%PDF-"), true},
		{[]byte("%PDF"), false},
		{[]byte(" %PDF-1.4"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := HasPDFHeader(tt.data); got != tt.want {
			t.Errorf("HasPDFHeader(%q) = %v, want %v", tt.data, got, tt.want)
		}
	}
}
