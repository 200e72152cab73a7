package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
)

func newTestChunker(size, overlap, min int) *Chunker {
	return New(&config.ChunkerConfig{ChunkSize: size, Overlap: overlap, MinLength: min})
}

func TestShortInputSingleChunk(t *testing.T) {
	c := newTestChunker(2000, 200, 100)
	text := "A cozy two-bedroom apartment in New Cairo."
	assert.Equal(t, []string{text}, c.Split(text))
}

func TestEmptyInput(t *testing.T) {
	c := newTestChunker(2000, 200, 100)
	assert.Nil(t, c.Split("   "))
}

func TestSplitsAtSentenceBoundary(t *testing.T) {
	c := newTestChunker(100, 20, 10)
	text := strings.Repeat("The compound has a pool. ", 20)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(chunk, "pool."), "chunk should end at sentence boundary: %q", chunk)
	}
}

func TestChunksOverlap(t *testing.T) {
	c := newTestChunker(100, 30, 10)
	text := strings.Repeat("Payment plans start at ten percent down. ", 15)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	// The tail of each chunk reappears at the head of the next.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev[len(prev)-10:]
		assert.Contains(t, chunks[i][:min(60, len(chunks[i]))], strings.TrimSpace(tail))
	}
}

func TestNoSeparatorFallsBackToCharacters(t *testing.T) {
	c := newTestChunker(50, 10, 10)
	text := strings.Repeat("x", 180)

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 50)
	}
}

func TestCoversWholeInput(t *testing.T) {
	c := newTestChunker(80, 20, 10)
	text := strings.Repeat("Delivery is in two years. ", 25)

	chunks := c.Split(text)
	joined := strings.Join(chunks, "")
	// Every sentence survives somewhere in the output.
	assert.GreaterOrEqual(t, strings.Count(joined, "Delivery"), 25)
}
