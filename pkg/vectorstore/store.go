// Package vectorstore provides k-NN retrieval over agent-scoped embeddings.
package vectorstore

import (
	"context"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// PropertyMatch pairs a property with its cosine similarity to the query.
type PropertyMatch struct {
	Property   models.PropertyDocument
	Similarity float64
}

// DocumentMatch pairs a knowledge document with its similarity.
type DocumentMatch struct {
	Document   models.KnowledgeDocument
	Similarity float64
}

// PropertyIndex is the property-side search capability. Implementations MUST
// filter by agentID at the store level: multi-tenant isolation is a
// correctness invariant, not a convenience.
type PropertyIndex interface {
	SearchProperties(ctx context.Context, embedding []float32, agentID string, k int, threshold float64) ([]PropertyMatch, error)
	UpsertProperty(ctx context.Context, p *models.PropertyDocument) error
	DeleteProperty(ctx context.Context, agentID, id string) error
}

// DocumentIndex is the knowledge-document-side search capability, with the
// same agent scoping rule.
type DocumentIndex interface {
	SearchDocuments(ctx context.Context, embedding []float32, agentID string, k int, threshold float64) ([]DocumentMatch, error)
	UpsertDocument(ctx context.Context, d *models.KnowledgeDocument) error
	DeleteDocument(ctx context.Context, agentID, id string) error
}
