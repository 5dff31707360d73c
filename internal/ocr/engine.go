package ocr

import "context"

// Engine is a recognition engine instance bound to one language.
// Implementations are not required to be safe for concurrent use; a Session
// serializes calls.
type Engine interface {
	// Recognize runs recognition on an encoded page image
	Recognize(ctx context.Context, image []byte) (*EngineOutput, error)

	// Close releases the engine's resources
	Close() error
}

// EngineFactory creates an engine for a language code such as "eng" or "eng+deu"
type EngineFactory func(language string) (Engine, error)

// EngineOutput is the raw engine result, grouped the way the engine reports it
type EngineOutput struct {
	// Text is the engine's plain-text rendition of the image
	Text string

	// Blocks holds the recognized structure: blocks, paragraphs, lines, words
	Blocks []Block
}

// Block is a content area reported by the engine
type Block struct {
	Paragraphs []Paragraph
}

// Paragraph is a group of lines reported by the engine
type Paragraph struct {
	Lines []Line
}

// Line is a text line reported by the engine
type Line struct {
	Words []Word
}

// Words flattens the block hierarchy into reading order as reported by the engine
func (o *EngineOutput) Words() []Word {
	if o == nil {
		return nil
	}

	var words []Word
	for _, block := range o.Blocks {
		for _, par := range block.Paragraphs {
			for _, line := range par.Lines {
				words = append(words, line.Words...)
			}
		}
	}
	return words
}
