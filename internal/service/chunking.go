package service

import (
	"fmt"
	"iter"
	"strings"
	"unicode"

	"github.com/cloo-solutions/ragdesk/internal/domain"
)

// Chunker splits text into overlapping segments of at most Size runes.
// Consecutive segments share exactly Overlap runes, so dropping the first
// Overlap runes of every segment after the first reconstructs the input.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the window before any document is touched.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, domain.ErrInvalidChunking.Wrap(fmt.Errorf("chunk_size must be positive, got %d", size))
	}
	if overlap < 0 {
		return nil, domain.ErrInvalidChunking.Wrap(fmt.Errorf("chunk_overlap cannot be negative, got %d", overlap))
	}
	if overlap >= size {
		return nil, domain.ErrInvalidChunking.Wrap(fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", overlap, size))
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// NewChunkerFromSettings builds a chunker from resolved settings.
func NewChunkerFromSettings(s domain.EffectiveSettings) (*Chunker, error) {
	return NewChunker(s.ChunkSize, s.ChunkOverlap)
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Segments yields the text segments lazily. Ranging over the result again
// starts over from the beginning. Whitespace-only text yields nothing.
func (c *Chunker) Segments(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}
		runes := []rune(text)

		start := 0
		for {
			end := start + c.size
			if end >= len(runes) {
				yield(string(runes[start:]))
				return
			}

			end = c.cut(runes, start, end)
			if !yield(string(runes[start:end])) {
				return
			}
			start = end - c.overlap
		}
	}
}

// Split yields chunks carrying a copy of meta.
func (c *Chunker) Split(text string, meta domain.ChunkMetadata) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		for segment := range c.Segments(text) {
			if !yield(domain.Chunk{Text: segment, Metadata: meta}) {
				return
			}
		}
	}
}

// cut moves end back to just after the last whitespace in the back half of
// the window. It never goes to or below start+overlap so the next segment
// always advances.
func (c *Chunker) cut(runes []rune, start, end int) int {
	minCut := start + c.size/2
	if floor := start + c.overlap; minCut < floor {
		minCut = floor
	}
	for i := end; i > minCut; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
