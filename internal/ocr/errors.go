package ocr

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned when recognition is attempted on a closed session
var ErrSessionClosed = errors.New("recognition session is closed")

// EngineInitError reports that the recognition engine could not start for a language
type EngineInitError struct {
	Language string
	Err      error
}

func (e *EngineInitError) Error() string {
	return fmt.Sprintf("failed to initialize recognition engine for language %q: %v", e.Language, e.Err)
}

func (e *EngineInitError) Unwrap() error {
	return e.Err
}

// RecognitionError reports that a specific page failed recognition
type RecognitionError struct {
	Page int
	Err  error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognition failed on page %d: %v", e.Page, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}
