package converter

import (
	"context"
	"io"
)

// PageSource yields one rendered image per page, in page order. Next returns
// io.EOF once every image has been produced.
type PageSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// SliceSource serves images from memory
type SliceSource struct {
	images [][]byte
	next   int
}

// NewSliceSource creates a source over images
func NewSliceSource(images ...[]byte) *SliceSource {
	return &SliceSource{images: images}
}

// Next implements PageSource
func (s *SliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.images) {
		return nil, io.EOF
	}
	img := s.images[s.next]
	s.next++
	return img, nil
}
