package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/platinummonkey/searchable/internal/logger"
)

// fakeEngine records calls and returns canned output
type fakeEngine struct {
	output     *EngineOutput
	err        error
	closeErr   error
	recognized int
	closed     int
}

func (f *fakeEngine) Recognize(_ context.Context, _ []byte) (*EngineOutput, error) {
	f.recognized++
	return f.output, f.err
}

func (f *fakeEngine) Close() error {
	f.closed++
	return f.closeErr
}

func factoryFor(engine *fakeEngine) EngineFactory {
	return func(string) (Engine, error) { return engine, nil }
}

func createTestImage(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestOpen_FactoryError(t *testing.T) {
	cause := errors.New("missing traineddata")
	factory := func(string) (Engine, error) { return nil, cause }

	_, err := Open(context.Background(), factory, "xyz", logger.NewNop())
	if err == nil {
		t.Fatal("expected error")
	}

	var initErr *EngineInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected *EngineInitError, got %T", err)
	}
	if initErr.Language != "xyz" {
		t.Errorf("Language = %q, want xyz", initErr.Language)
	}
	if !errors.Is(err, cause) {
		t.Error("EngineInitError should unwrap to the factory error")
	}
}

func TestOpen_DefaultLanguage(t *testing.T) {
	var requested string
	factory := func(lang string) (Engine, error) {
		requested = lang
		return &fakeEngine{}, nil
	}

	session, err := Open(context.Background(), factory, "", logger.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()

	if requested != DefaultLanguage || session.Language() != DefaultLanguage {
		t.Errorf("language = %q/%q, want %q", requested, session.Language(), DefaultLanguage)
	}
}

func TestSession_RecognizeFlattensBlocks(t *testing.T) {
	engine := &fakeEngine{output: &EngineOutput{
		Text: "Hello World\nBye\n",
		Blocks: []Block{
			{Paragraphs: []Paragraph{
				{Lines: []Line{
					{Words: []Word{
						NewWord("Hello", 95, NewBBox(10, 10, 60, 22)),
						NewWord("World", 91, NewBBox(70, 10, 130, 22)),
					}},
				}},
			}},
			{Paragraphs: []Paragraph{
				{Lines: []Line{{Words: []Word{NewWord("Bye", 80, NewBBox(10, 40, 40, 52))}}}},
			}},
		},
	}}

	session, err := Open(context.Background(), factoryFor(engine), "eng", logger.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()

	result, err := session.Recognize(context.Background(), createTestImage(t, 200, 100), 4)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}

	if result.PageNumber != 4 {
		t.Errorf("PageNumber = %d, want 4", result.PageNumber)
	}
	if result.Width != 200 || result.Height != 100 {
		t.Errorf("dimensions = %dx%d, want 200x100", result.Width, result.Height)
	}
	if len(result.Words) != 3 {
		t.Fatalf("len(Words) = %d, want 3", len(result.Words))
	}
	if result.Words[2].Text != "Bye" {
		t.Errorf("third word = %q, want Bye", result.Words[2].Text)
	}
	if result.FullText != "Hello World\nBye\n" {
		t.Errorf("FullText = %q", result.FullText)
	}
}

func TestSession_RecognizeEmptyOutput(t *testing.T) {
	session, err := Open(context.Background(), factoryFor(&fakeEngine{}), "eng", logger.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()

	result, err := session.Recognize(context.Background(), createTestImage(t, 10, 10), 1)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if result.Words == nil || len(result.Words) != 0 {
		t.Errorf("expected empty non-nil word list, got %#v", result.Words)
	}
}

func TestSession_RecognizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
		image  func(t *testing.T) []byte
	}{
		{
			name:   "engine failure",
			engine: &fakeEngine{err: errors.New("engine crashed")},
			image:  func(t *testing.T) []byte { return createTestImage(t, 10, 10) },
		},
		{
			name:   "undecodable image",
			engine: &fakeEngine{},
			image:  func(*testing.T) []byte { return []byte("not an image") },
		},
		{
			name:   "empty image",
			engine: &fakeEngine{},
			image:  func(*testing.T) []byte { return nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := Open(context.Background(), factoryFor(tt.engine), "eng", logger.NewNop())
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer session.Close()

			_, err = session.Recognize(context.Background(), tt.image(t), 7)
			var recErr *RecognitionError
			if !errors.As(err, &recErr) {
				t.Fatalf("expected *RecognitionError, got %v", err)
			}
			if recErr.Page != 7 {
				t.Errorf("Page = %d, want 7", recErr.Page)
			}
		})
	}
}

func TestSession_RecognizeCanceled(t *testing.T) {
	engine := &fakeEngine{}
	session, err := Open(context.Background(), factoryFor(engine), "eng", logger.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = session.Recognize(ctx, createTestImage(t, 10, 10), 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if engine.recognized != 0 {
		t.Error("engine should not run after cancellation")
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	engine := &fakeEngine{closeErr: errors.New("close failed")}
	session, err := Open(context.Background(), factoryFor(engine), "eng", logger.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	first := session.Close()
	second := session.Close()

	if engine.closed != 1 {
		t.Errorf("engine closed %d times, want 1", engine.closed)
	}
	if first == nil || first != second {
		t.Errorf("Close() should return the first close error on every call, got %v / %v", first, second)
	}

	_, err = session.Recognize(context.Background(), createTestImage(t, 10, 10), 2)
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestRecognizeOnce_ClosesSession(t *testing.T) {
	engine := &fakeEngine{output: &EngineOutput{Text: "x"}}

	result, err := RecognizeOnce(context.Background(), factoryFor(engine), createTestImage(t, 20, 30), 1, "eng", logger.NewNop())
	if err != nil {
		t.Fatalf("RecognizeOnce() error = %v", err)
	}
	if result.Height != 30 {
		t.Errorf("Height = %d, want 30", result.Height)
	}
	if engine.closed != 1 {
		t.Errorf("engine closed %d times, want 1", engine.closed)
	}
}
