package chunker

import (
	"fmt"

	"github.com/xxxsen/studynote/internal/model"
)

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Chunker splits raw text into overlapping windows suitable for embedding.
// Pure over its input and configuration.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d", overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split consumes text greedily in windows of at most size runes, preferring a
// break at a sentence or paragraph boundary inside the window and falling
// back to a hard cut. Each subsequent chunk starts overlap runes before the
// previous chunk's end. Trailing content shorter than size is always kept and
// no chunk is ever empty.
func (c *Chunker) Split(text, sourceID string) []model.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []model.Chunk
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := breakPoint(runes, start, end); cut > start {
			end = cut
		}
		chunks = append(chunks, model.Chunk{
			Text:     string(runes[start:end]),
			Sequence: len(chunks),
			SourceID: sourceID,
		})
		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint scans backwards through (start, end] for the position just after
// the latest paragraph break or sentence terminator. Returns start when the
// window has no boundary.
func breakPoint(runes []rune, start, end int) int {
	for i := end; i > start; i-- {
		r := runes[i-1]
		if r == '\n' {
			return i
		}
		if (r == '.' || r == '!' || r == '?') && (i == len(runes) || runes[i] == ' ' || runes[i] == '\n') {
			return i
		}
	}
	return start
}
