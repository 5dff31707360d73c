// Package layout rebuilds reading order from an unordered bag of recognized
// words. Words are clustered into visual lines, lines are ordered top to
// bottom, and each word is prefixed with the whitespace its position implies:
// a newline at the start of a line, a tab across column-sized gaps, a space
// across ordinary word gaps, or nothing when words touch.
package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/platinummonkey/searchable/internal/ocr"
)

// Whitespace markers placed in front of a token's raw text
const (
	NewlinePrefix = "\n"
	TabPrefix     = "\t"
	SpacePrefix   = " "
)

// Token is a recognized word decorated with its inferred leading whitespace
type Token struct {
	// RawText is the word as recognized
	RawText string

	// Text is RawText with the whitespace marker prepended
	Text string

	// BBox is the word's original box in recognition pixel space
	BBox ocr.BBox

	// Confidence is carried over from the recognized word
	Confidence float64
}

// Prefix returns the whitespace marker in front of RawText
func (t Token) Prefix() string {
	return strings.TrimSuffix(t.Text, t.RawText)
}

// Options holds the tunable heuristics of the reconstruction
type Options struct {
	// LineTolerance scales min(word height, line height) to get the max
	// center distance for a word to join a line
	LineTolerance float64 `mapstructure:"line-tolerance"`

	// MinLineTolerance is the floor of that distance, in pixels
	MinLineTolerance float64 `mapstructure:"min-line-tolerance"`

	// WordGapRatio scales the line height; smaller gaps join words with no space
	WordGapRatio float64 `mapstructure:"word-gap-ratio"`

	// TableGapWordFactor scales the line's mean word width for the tab threshold
	TableGapWordFactor float64 `mapstructure:"table-gap-word-factor"`

	// TableGapLineFactor scales the line height for the tab threshold
	TableGapLineFactor float64 `mapstructure:"table-gap-line-factor"`
}

// DefaultOptions returns the standard heuristics
func DefaultOptions() Options {
	return Options{
		LineTolerance:      0.6,
		MinLineTolerance:   2,
		WordGapRatio:       0.15,
		TableGapWordFactor: 1.25,
		TableGapLineFactor: 1.5,
	}
}

// Reconstructor orders words with a fixed set of Options. It holds no
// mutable state and is safe for concurrent use.
type Reconstructor struct {
	opts Options
}

// New creates a Reconstructor. Zero-valued fields fall back to the defaults.
func New(opts Options) *Reconstructor {
	def := DefaultOptions()
	if opts.LineTolerance <= 0 {
		opts.LineTolerance = def.LineTolerance
	}
	if opts.MinLineTolerance <= 0 {
		opts.MinLineTolerance = def.MinLineTolerance
	}
	if opts.WordGapRatio <= 0 {
		opts.WordGapRatio = def.WordGapRatio
	}
	if opts.TableGapWordFactor <= 0 {
		opts.TableGapWordFactor = def.TableGapWordFactor
	}
	if opts.TableGapLineFactor <= 0 {
		opts.TableGapLineFactor = def.TableGapLineFactor
	}
	return &Reconstructor{opts: opts}
}

// Options returns the effective options
func (r *Reconstructor) Options() Options {
	return r.opts
}

var defaultReconstructor = New(DefaultOptions())

// Reconstruct orders words with DefaultOptions
func Reconstruct(words []ocr.Word) []Token {
	return defaultReconstructor.Reconstruct(words)
}

// candidate is a valid word with its precomputed vertical metrics
type candidate struct {
	word    ocr.Word
	centerY float64
	height  float64
}

// line is a cluster of candidates sharing a visual text line
type line struct {
	centerY       float64
	averageHeight float64
	members       []candidate
}

// add appends c and updates the running means
func (l *line) add(c candidate) {
	n := float64(len(l.members))
	l.centerY = (l.centerY*n + c.centerY) / (n + 1)
	l.averageHeight = (l.averageHeight*n + c.height) / (n + 1)
	l.members = append(l.members, c)
}

// Reconstruct returns the valid words in reading order with whitespace
// prefixes. Invalid words are dropped; no valid words yields an empty slice.
func (r *Reconstructor) Reconstruct(words []ocr.Word) []Token {
	candidates := make([]candidate, 0, len(words))
	for _, w := range words {
		if !w.Valid() {
			continue
		}
		candidates = append(candidates, candidate{
			word:    w,
			centerY: w.BBox.CenterY(),
			height:  w.BBox.Height(),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.centerY != b.centerY {
			return a.centerY < b.centerY
		}
		return lessByPosition(a.word, b.word)
	})

	lines := r.clusterLines(candidates)

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].centerY < lines[j].centerY
	})

	tokens := make([]Token, 0, len(candidates))
	for lineIndex, ln := range lines {
		sort.SliceStable(ln.members, func(i, j int) bool {
			return lessByPosition(ln.members[i].word, ln.members[j].word)
		})

		wordGap := ln.averageHeight * r.opts.WordGapRatio
		tableGap := r.tableGapThreshold(ln)

		for i, c := range ln.members {
			prefix := ""
			switch {
			case i == 0 && lineIndex > 0:
				prefix = NewlinePrefix
			case i > 0:
				gap := math.Max(0, c.word.BBox.X0-ln.members[i-1].word.BBox.X1)
				if gap > wordGap {
					if gap >= tableGap {
						prefix = TabPrefix
					} else {
						prefix = SpacePrefix
					}
				}
			}

			tokens = append(tokens, Token{
				RawText:    c.word.Text,
				Text:       prefix + c.word.Text,
				BBox:       c.word.BBox,
				Confidence: c.word.Confidence,
			})
		}
	}

	return tokens
}

// clusterLines assigns each candidate, in vertical order, to the nearest
// eligible line or starts a new one
func (r *Reconstructor) clusterLines(candidates []candidate) []*line {
	var lines []*line

	for _, c := range candidates {
		var best *line
		bestDistance := math.Inf(1)

		for _, ln := range lines {
			distance := math.Abs(c.centerY - ln.centerY)
			tolerance := math.Max(r.opts.MinLineTolerance, math.Min(c.height, ln.averageHeight)*r.opts.LineTolerance)
			if distance <= tolerance && distance < bestDistance {
				best = ln
				bestDistance = distance
			}
		}

		if best == nil {
			lines = append(lines, &line{
				centerY:       c.centerY,
				averageHeight: c.height,
				members:       []candidate{c},
			})
			continue
		}
		best.add(c)
	}

	return lines
}

// tableGapThreshold is the horizontal gap at or above which two words on
// the same line are treated as separate table cells or columns
func (r *Reconstructor) tableGapThreshold(ln *line) float64 {
	total := 0.0
	for _, c := range ln.members {
		total += c.word.BBox.Width()
	}
	averageWordWidth := total / float64(len(ln.members))

	return math.Max(averageWordWidth*r.opts.TableGapWordFactor, ln.averageHeight*r.opts.TableGapLineFactor)
}

// lessByPosition orders words left to right; the remaining keys only make
// the order independent of the input permutation
func lessByPosition(a, b ocr.Word) bool {
	if a.BBox.X0 != b.BBox.X0 {
		return a.BBox.X0 < b.BBox.X0
	}
	if a.BBox.X1 != b.BBox.X1 {
		return a.BBox.X1 < b.BBox.X1
	}
	if a.BBox.Y0 != b.BBox.Y0 {
		return a.BBox.Y0 < b.BBox.Y0
	}
	if a.BBox.Y1 != b.BBox.Y1 {
		return a.BBox.Y1 < b.BBox.Y1
	}
	if a.Text != b.Text {
		return a.Text < b.Text
	}
	return a.Confidence < b.Confidence
}

// Join concatenates the decorated texts into the copy-friendly text stream
func Join(tokens []Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(t.Text)
	}
	return sb.String()
}
