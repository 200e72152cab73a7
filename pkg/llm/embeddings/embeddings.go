// Package embeddings produces fixed-dimension unit vectors for text.
package embeddings

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
)

// Embedder turns text into fixed-dimension float32 vectors. Empty input
// returns empty output without calling the backend; failures surface to the
// caller with no silent fallback.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder is the production Embedder backed by the OpenAI embeddings
// API through langchaingo.
type OpenAIEmbedder struct {
	llm        *openai.LLM
	dimensions int
	cfg        *config.EmbeddingConfig
}

// NewOpenAIEmbedder builds an embedder from configuration.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing embedding API key: %s is not set", cfg.APIKeyEnv)
	}

	llm, err := openai.New(
		openai.WithToken(key),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding client: %w", err)
	}

	return &OpenAIEmbedder{
		llm:        llm,
		dimensions: cfg.Dimensions,
		cfg:        cfg,
	}, nil
}

// Embed returns the unit vector for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns unit vectors for many texts, preserving order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	vecs, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), e.dimensions)
		}
		Normalize(v)
	}
	return vecs, nil
}

// Normalize scales v to unit L2 norm in place. Zero vectors are left alone.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
