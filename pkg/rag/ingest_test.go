package rag

import (
	"github.com/ahmmed-fouad/real-estate-agent/pkg/chunker"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
)

func newTestChunker() *chunker.Chunker {
	return chunker.New(&config.ChunkerConfig{ChunkSize: 2000, Overlap: 200, MinLength: 100})
}
