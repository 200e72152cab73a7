// Package chunker splits long text into overlapping chunks at natural
// boundaries for embedding.
package chunker

import (
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
)

// separators in preference order: paragraph breaks, line breaks, sentence
// punctuation (Latin and Arabic), comma, space. Character-level splitting is
// the fallback when none occur in range.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "؟ ", "، ", ", ", " "}

// Chunker produces overlapping chunks of roughly ChunkSize characters.
type Chunker struct {
	chunkSize int
	overlap   int
	minLength int
}

// New creates a chunker from configuration.
func New(cfg *config.ChunkerConfig) *Chunker {
	return &Chunker{
		chunkSize: cfg.ChunkSize,
		overlap:   cfg.Overlap,
		minLength: cfg.MinLength,
	}
}

// Split returns the chunk sequence for text. Inputs at or below the minimum
// threshold come back as a single chunk unchanged. Consecutive chunks share
// the configured overlap so no boundary context is lost.
func (c *Chunker) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if len(runes) <= c.chunkSize || len(runes) <= c.minLength {
		return []string{trimmed}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		cut := c.findCut(runes, start, end)
		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - c.overlap
		if next <= start {
			next = cut // overlap would stall; move on without it
		}
		start = next
	}
	return chunks
}

// findCut looks backwards from end for the best separator within the chunk.
// Boundaries in the first half are ignored so chunks stay near target size.
func (c *Chunker) findCut(runes []rune, start, end int) int {
	window := string(runes[start:end])
	half := (end - start) / 2

	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		cutOffset := len([]rune(window[:idx])) + len([]rune(sep))
		if cutOffset <= half {
			continue
		}
		return start + cutOffset
	}
	return end
}
