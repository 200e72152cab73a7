package rag

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/vectorstore"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakePropertyIndex struct {
	matches   []vectorstore.PropertyMatch
	err       error
	lastAgent string
	upserted  []*models.PropertyDocument
}

func (f *fakePropertyIndex) SearchProperties(_ context.Context, _ []float32, agentID string, _ int, _ float64) ([]vectorstore.PropertyMatch, error) {
	f.lastAgent = agentID
	return f.matches, f.err
}

func (f *fakePropertyIndex) UpsertProperty(_ context.Context, p *models.PropertyDocument) error {
	f.upserted = append(f.upserted, p)
	return nil
}

func (f *fakePropertyIndex) DeleteProperty(context.Context, string, string) error { return nil }

type fakeDocumentIndex struct {
	matches   []vectorstore.DocumentMatch
	err       error
	lastAgent string
}

func (f *fakeDocumentIndex) SearchDocuments(_ context.Context, _ []float32, agentID string, _ int, _ float64) ([]vectorstore.DocumentMatch, error) {
	f.lastAgent = agentID
	return f.matches, f.err
}

func (f *fakeDocumentIndex) UpsertDocument(context.Context, *models.KnowledgeDocument) error {
	return nil
}

func (f *fakeDocumentIndex) DeleteDocument(context.Context, string, string) error { return nil }

func testRetriever(props *fakePropertyIndex, docs *fakeDocumentIndex) *Retriever {
	return NewRetriever(&fakeEmbedder{vector: []float32{1, 0}}, props, docs,
		&config.RetrievalConfig{PropertyThreshold: 0.7, DocumentThreshold: 0.2, TopK: 5})
}

func propertyMatch(id, city, ptype string, price float64, bedrooms int) vectorstore.PropertyMatch {
	return vectorstore.PropertyMatch{
		Property: models.PropertyDocument{
			ID: id, AgentID: "agent-1", City: city, PropertyType: ptype,
			BasePrice: price, Bedrooms: bedrooms,
		},
		Similarity: 0.9,
	}
}

func TestDetectSource(t *testing.T) {
	assert.Equal(t, SourceProperties, DetectSource("I want to buy a villa"))
	assert.Equal(t, SourceProperties, DetectSource("عايز اشتري شقة"))
	assert.Equal(t, SourceDocuments, DetectSource("what is the refund policy"))
	assert.Equal(t, SourceDocuments, DetectSource("ايه شروط العقد"))
	assert.Equal(t, SourceBoth, DetectSource("hello there"))
	// A query hitting both vocabularies searches both.
	assert.Equal(t, SourceBoth, DetectSource("what is the price"))
}

func TestRetrieveContextScopesByAgent(t *testing.T) {
	props := &fakePropertyIndex{matches: []vectorstore.PropertyMatch{propertyMatch("p1", "Cairo", "villa", 1e6, 3)}}
	docs := &fakeDocumentIndex{}
	r := testRetriever(props, docs)

	_, err := r.RetrieveContext(context.Background(), "buy villa", "agent-9", Options{Source: SourceBoth})
	require.NoError(t, err)
	assert.Equal(t, "agent-9", props.lastAgent)
	assert.Equal(t, "agent-9", docs.lastAgent)
}

func TestPerSourceFailureDoesNotAbortOther(t *testing.T) {
	props := &fakePropertyIndex{err: errors.New("pg down")}
	docs := &fakeDocumentIndex{matches: []vectorstore.DocumentMatch{{
		Document: models.KnowledgeDocument{ID: "d1", Title: "Policy", DocumentType: models.DocumentTypePolicy},
	}}}
	r := testRetriever(props, docs)

	out, err := r.RetrieveContext(context.Background(), "q", "agent-1", Options{Source: SourceBoth})
	require.NoError(t, err)
	assert.Empty(t, out.Properties)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, []Source{SourceDocuments}, out.Sources)
}

func TestEmbeddingFailureSurfaces(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{err: errors.New("quota")}, &fakePropertyIndex{}, &fakeDocumentIndex{},
		&config.RetrievalConfig{TopK: 5})
	_, err := r.RetrieveContext(context.Background(), "q", "agent-1", Options{})
	assert.Error(t, err)
}

func TestPostHocFilters(t *testing.T) {
	props := &fakePropertyIndex{matches: []vectorstore.PropertyMatch{
		propertyMatch("cheap", "Cairo", "apartment", 2_000_000, 3),
		propertyMatch("expensive", "Cairo", "apartment", 9_000_000, 3),
		propertyMatch("wrong-type", "Cairo", "villa", 2_000_000, 3),
		propertyMatch("wrong-city", "Alexandria", "apartment", 2_000_000, 3),
	}}
	r := testRetriever(props, &fakeDocumentIndex{})

	maxPrice := 3_000_000.0
	out, err := r.RetrieveContext(context.Background(), "buy apartment", "agent-1", Options{
		Source: SourceProperties,
		Filters: models.SearchFilters{
			MaxPrice:     &maxPrice,
			City:         "Cairo",
			PropertyType: "apartment",
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Properties, 1)
	assert.Equal(t, "cheap", out.Properties[0].Property.ID)
}

func TestAmenitySubsetFilter(t *testing.T) {
	withPool := propertyMatch("with-pool", "Cairo", "villa", 1e6, 4)
	withPool.Property.Amenities = []string{"Pool", "Gym", "Garden"}
	without := propertyMatch("without", "Cairo", "villa", 1e6, 4)
	without.Property.Amenities = []string{"Garden"}

	props := &fakePropertyIndex{matches: []vectorstore.PropertyMatch{withPool, without}}
	r := testRetriever(props, &fakeDocumentIndex{})

	out, err := r.RetrieveContext(context.Background(), "buy villa", "agent-1", Options{
		Source:  SourceProperties,
		Filters: models.SearchFilters{Amenities: []string{"pool", "gym"}},
	})
	require.NoError(t, err)
	require.Len(t, out.Properties, 1)
	assert.Equal(t, "with-pool", out.Properties[0].Property.ID)
}

func TestFormatContextOrdering(t *testing.T) {
	docs := []vectorstore.DocumentMatch{{Document: models.KnowledgeDocument{
		Title: "Booking policy", DocumentType: models.DocumentTypePolicy,
		ContentChunks: []string{"Chunk about deposits."},
	}}}
	properties := []vectorstore.PropertyMatch{propertyMatch("p1", "Cairo", "apartment", 3_000_000, 3)}

	out := FormatContext(docs, properties)
	kbIdx := strings.Index(out, "KNOWLEDGE BASE:")
	propIdx := strings.Index(out, "AVAILABLE PROPERTIES:")
	require.GreaterOrEqual(t, kbIdx, 0)
	require.Greater(t, propIdx, kbIdx)
	assert.Contains(t, out, "3,000,000 EGP")
	assert.Contains(t, out, "جنيه")
}

func TestAverageVectorsUnitNorm(t *testing.T) {
	avg := AverageVectors([][]float32{{1, 0}, {0, 1}})
	var sum float64
	for _, x := range avg {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-3)
}

func TestAverageOfCopiesIsSameVector(t *testing.T) {
	v := []float32{0.6, 0.8}
	avg := AverageVectors([][]float32{{0.6, 0.8}, {0.6, 0.8}, {0.6, 0.8}})
	for i := range v {
		assert.InDelta(t, float64(v[i]), float64(avg[i]), 1e-6)
	}
}

func TestIngestPropertyStoresUnitVector(t *testing.T) {
	props := &fakePropertyIndex{}
	ing := NewIngestor(newTestChunker(), &fakeEmbedder{vector: []float32{3, 4}}, props, &fakeDocumentIndex{})

	p := &models.PropertyDocument{
		ID: "p1", AgentID: "agent-1", City: "Cairo", PropertyType: "apartment",
		BasePrice: 3_000_000, Bedrooms: 3, Bathrooms: 2, Area: 120,
		Description: "Sunny apartment near the park.",
	}
	require.NoError(t, ing.IngestProperty(context.Background(), p))
	require.Len(t, props.upserted, 1)

	var sum float64
	for _, x := range props.upserted[0].Embedding {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-3)
	assert.NotEmpty(t, props.upserted[0].EmbeddingText)
}
