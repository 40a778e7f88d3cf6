// Package chunker splits raw document text into overlapping windows for
// retrieval indexing.
package chunker

import (
	"strings"

	"github.com/docuchat/docuchat/internal/domain"
)

const (
	// DefaultWindowSize is the chunk window size in characters.
	DefaultWindowSize = 1000

	// DefaultOverlap is the number of characters shared between consecutive
	// chunks so sentences spanning a boundary stay retrievable.
	DefaultOverlap = 200
)

// Chunk is one window of document text. Index is 0-based, strictly increasing
// per document with no gaps.
type Chunk struct {
	Content string
	Index   int
}

// Chunker is a deterministic sliding-window splitter. It is a pure function of
// its inputs: no network, no storage, safe for concurrent use.
type Chunker struct {
	windowSize int
	overlap    int
}

// New validates the window configuration. An overlap >= windowSize would step
// by zero or backwards and never terminate, so it is rejected up front.
func New(windowSize, overlap int) (*Chunker, error) {
	if windowSize <= 0 {
		return nil, domain.Configf("window size must be positive, got %d", windowSize)
	}
	if overlap < 0 || overlap >= windowSize {
		return nil, domain.Configf("overlap must be in [0, windowSize), got overlap=%d window=%d", overlap, windowSize)
	}
	return &Chunker{windowSize: windowSize, overlap: overlap}, nil
}

// Split produces the ordered chunk sequence for text. Windows that are empty
// after trimming whitespace are dropped; their index positions are not reused.
// Empty input yields zero chunks, not an error.
func (c *Chunker) Split(text string) []Chunk {
	step := c.windowSize - c.overlap

	// A window starting at or past len(text)-overlap would only repeat the
	// tail of the previous window, so iteration stops there. The first window
	// is always taken so short documents still produce one chunk.
	var chunks []Chunk
	for offset := 0; offset == 0 || offset < len(text)-c.overlap; offset += step {
		end := offset + c.windowSize
		if end > len(text) {
			end = len(text)
		}
		window := text[offset:end]
		if strings.TrimSpace(window) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Content: window,
			Index:   offset / step,
		})
	}
	return chunks
}

// WindowSize returns the configured window size.
func (c *Chunker) WindowSize() int { return c.windowSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }
