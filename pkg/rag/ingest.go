package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/chunker"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/llm/embeddings"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/response"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/vectorstore"
)

// Ingestor builds embedding text, chunks it, embeds the chunks, and stores
// one unit vector per property or document.
type Ingestor struct {
	chunker    *chunker.Chunker
	embedder   embeddings.Embedder
	properties vectorstore.PropertyIndex
	documents  vectorstore.DocumentIndex
}

// NewIngestor creates an ingestor.
func NewIngestor(ch *chunker.Chunker, embedder embeddings.Embedder, properties vectorstore.PropertyIndex, documents vectorstore.DocumentIndex) *Ingestor {
	return &Ingestor{
		chunker:    ch,
		embedder:   embedder,
		properties: properties,
		documents:  documents,
	}
}

// IngestProperty embeds and upserts one property. Multi-chunk text collapses
// into a single similarity-preserving vector: component-wise average followed
// by L2 normalization. Without the normalization, cosine similarity against
// unit query vectors would be skewed by chunk count.
func (g *Ingestor) IngestProperty(ctx context.Context, p *models.PropertyDocument) error {
	if p.EmbeddingText == "" {
		p.EmbeddingText = BuildPropertyEmbeddingText(p)
	}

	chunks := g.chunker.Split(p.EmbeddingText)
	if len(chunks) == 0 {
		return fmt.Errorf("property %s has no embeddable text", p.ID)
	}

	vectors, err := g.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed property %s: %w", p.ID, err)
	}

	p.Embedding = AverageVectors(vectors)
	return g.properties.UpsertProperty(ctx, p)
}

// IngestKnowledgeDocument chunks, embeds, and upserts one document. The
// chunks are stored alongside the aggregated vector for context formatting.
func (g *Ingestor) IngestKnowledgeDocument(ctx context.Context, d *models.KnowledgeDocument, content string) error {
	chunks := g.chunker.Split(content)
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no embeddable content", d.ID)
	}
	d.ContentChunks = chunks

	vectors, err := g.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed document %s: %w", d.ID, err)
	}

	d.Embedding = AverageVectors(vectors)
	return g.documents.UpsertDocument(ctx, d)
}

// AverageVectors returns the component-wise mean of vectors, normalized to
// unit length. A single vector passes through normalization unchanged.
func AverageVectors(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			out[i] += x
		}
	}
	n := float32(len(vectors))
	for i := range out {
		out[i] /= n
	}
	embeddings.Normalize(out)
	return out
}

// BuildPropertyEmbeddingText renders the searchable description of a
// property.
func BuildPropertyEmbeddingText(p *models.PropertyDocument) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s in %s", p.PropertyType, p.ProjectName, joinLocation(p.City, p.District))
	fmt.Fprintf(&sb, ". %d bedrooms, %d bathrooms, %.0f sqm", p.Bedrooms, p.Bathrooms, p.Area)
	fmt.Fprintf(&sb, ". Price %s", response.GroupThousands(int64(p.BasePrice)))
	if p.Currency != "" {
		sb.WriteString(" " + p.Currency)
	}
	if len(p.PaymentPlans) > 0 {
		plan := p.PaymentPlans[0]
		fmt.Fprintf(&sb, ". Payment plan: %.0f%% down over %d years",
			plan.DownPaymentPercent, plan.InstallmentYears)
	}
	if len(p.Amenities) > 0 {
		fmt.Fprintf(&sb, ". Amenities: %s", strings.Join(p.Amenities, ", "))
	}
	if p.Description != "" {
		sb.WriteString(". " + p.Description)
	}
	return sb.String()
}
