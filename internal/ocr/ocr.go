// Package ocr wraps an optical character recognition engine behind a
// request-scoped Session that produces flat word lists with bounding boxes.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	// Register decoders for the formats page renderers commonly emit.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/platinummonkey/searchable/internal/logger"
)

// DefaultLanguage is used when no language is requested
const DefaultLanguage = "eng"

// Session owns one engine instance for the duration of a single conversion.
// Recognize calls are serialized; Close is idempotent.
type Session struct {
	engine   Engine
	language string
	logger   *logger.Logger

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Open creates the engine for language and wraps it in a Session.
// A factory failure is reported as *EngineInitError.
func Open(ctx context.Context, factory EngineFactory, language string, log *logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.Get()
	}
	if language == "" {
		language = DefaultLanguage
	}
	if factory == nil {
		return nil, &EngineInitError{Language: language, Err: fmt.Errorf("no engine factory configured")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &EngineInitError{Language: language, Err: err}
	}

	start := time.Now()
	engine, err := factory(language)
	if err != nil {
		return nil, &EngineInitError{Language: language, Err: err}
	}
	if engine == nil {
		return nil, &EngineInitError{Language: language, Err: fmt.Errorf("engine factory returned nil")}
	}

	log.WithFields("language", language, "duration", time.Since(start)).Info("Recognition engine initialized")

	return &Session{
		engine:   engine,
		language: language,
		logger:   log,
	}, nil
}

// Language returns the language the session was opened for
func (s *Session) Language() string {
	return s.language
}

// Recognize decodes the image dimensions, runs the engine and flattens its
// output into a PageResult. Every failure is returned as *RecognitionError.
func (s *Session) Recognize(ctx context.Context, imageData []byte, pageNumber int) (*PageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &RecognitionError{Page: pageNumber, Err: ErrSessionClosed}
	}
	if err := ctx.Err(); err != nil {
		return nil, &RecognitionError{Page: pageNumber, Err: err}
	}

	log := s.logger.WithPage(pageNumber)
	start := time.Now()

	width, height, err := imageDimensions(imageData)
	if err != nil {
		return nil, &RecognitionError{Page: pageNumber, Err: err}
	}
	log.WithFields("width", width, "height", height).Debug("Decoded page image")

	out, err := s.engine.Recognize(ctx, imageData)
	if err != nil {
		return nil, &RecognitionError{Page: pageNumber, Err: err}
	}
	if out == nil {
		out = &EngineOutput{}
	}

	result := &PageResult{
		PageNumber: pageNumber,
		Width:      width,
		Height:     height,
		Words:      out.Words(),
		FullText:   out.Text,
	}
	if result.Words == nil {
		result.Words = []Word{}
	}

	log.WithFields(
		"words", len(result.Words),
		"confidence", result.Confidence(),
		"duration", time.Since(start),
	).Info("Page recognized")

	return result, nil
}

// Close releases the engine. Only the first call has an effect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.logger.WithFields("language", s.language).Debug("Terminating recognition engine")
		s.closeErr = s.engine.Close()
	})
	return s.closeErr
}

// RecognizeOnce recognizes a single image with an isolated session that is
// closed before returning. Prefer a shared Session for multi-page documents.
func RecognizeOnce(ctx context.Context, factory EngineFactory, imageData []byte, pageNumber int, language string, log *logger.Logger) (*PageResult, error) {
	session, err := Open(ctx, factory, language, log)
	if err != nil {
		return nil, err
	}
	defer func() { _ = session.Close() }()

	return session.Recognize(ctx, imageData, pageNumber)
}

// imageDimensions reads only the image header to get pixel width and height
func imageDimensions(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("empty page image")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode page image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
