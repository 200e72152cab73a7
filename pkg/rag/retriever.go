// Package rag fuses property and document retrieval into the context handed
// to the LLM.
package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/llm/embeddings"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/vectorstore"
)

// Source selects which indexes a retrieval consults.
type Source string

// Retrieval sources.
const (
	SourceProperties Source = "PROPERTIES"
	SourceDocuments  Source = "DOCUMENTS"
	SourceBoth       Source = "BOTH"
)

// Options tune one retrieval. Zero values auto-detect the source and use the
// configured defaults.
type Options struct {
	Source  Source
	Filters models.SearchFilters
	TopK    int
}

// Context is the fused retrieval result.
type Context struct {
	Properties      []vectorstore.PropertyMatch
	Documents       []vectorstore.DocumentMatch
	CombinedContext string
	Sources         []Source
}

// Retriever embeds the query and searches the selected indexes, always scoped
// to the owning agent. One source failing never aborts the other.
type Retriever struct {
	embedder   embeddings.Embedder
	properties vectorstore.PropertyIndex
	documents  vectorstore.DocumentIndex
	cfg        *config.RetrievalConfig
	logger     *slog.Logger
}

// NewRetriever creates a retriever.
func NewRetriever(embedder embeddings.Embedder, properties vectorstore.PropertyIndex, documents vectorstore.DocumentIndex, cfg *config.RetrievalConfig) *Retriever {
	return &Retriever{
		embedder:   embedder,
		properties: properties,
		documents:  documents,
		cfg:        cfg,
		logger:     slog.Default().With("component", "rag-retriever"),
	}
}

var propertyWords = []string{
	"buy", "rent", "lease", "price", "apartment", "villa", "bedroom", "compound",
	"شقة", "فيلا", "سعر", "ايجار", "إيجار", "شراء", "كمبوند", "غرفة",
}

var documentWords = []string{
	"how", "what", "policy", "contract", "procedure", "steps", "terms", "refund",
	"ازاي", "إزاي", "ايه", "إيه", "سياسة", "عقد", "اجراءات", "إجراءات", "شروط",
}

// DetectSource applies the keyword heuristics; ambiguous queries search both.
func DetectSource(query string) Source {
	lower := strings.ToLower(query)
	property := containsAny(lower, propertyWords)
	document := containsAny(lower, documentWords)
	switch {
	case property && !document:
		return SourceProperties
	case document && !property:
		return SourceDocuments
	default:
		return SourceBoth
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// RetrieveContext embeds the query, searches the selected sources with the
// agent filter, applies post-hoc metadata filters, and formats the combined
// context string. An embedding failure is returned as an error and no source
// is searched; the dispatcher then proceeds without context (fails CLOSED).
func (r *Retriever) RetrieveContext(ctx context.Context, query, agentID string, opts Options) (*Context, error) {
	source := opts.Source
	if source == "" {
		source = DetectSource(query)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	out := &Context{}

	if source == SourceProperties || source == SourceBoth {
		matches, err := r.properties.SearchProperties(ctx, embedding, agentID, topK, r.cfg.PropertyThreshold)
		if err != nil {
			// The other source still answers.
			r.logger.Error("Property search failed, continuing without properties",
				"agent_id", agentID, "error", err)
		} else {
			out.Properties = filterProperties(matches, opts.Filters)
			out.Sources = append(out.Sources, SourceProperties)
		}
	}

	if source == SourceDocuments || source == SourceBoth {
		matches, err := r.documents.SearchDocuments(ctx, embedding, agentID, topK, r.cfg.DocumentThreshold)
		if err != nil {
			r.logger.Error("Document search failed, continuing without documents",
				"agent_id", agentID, "error", err)
		} else {
			out.Documents = matches
			out.Sources = append(out.Sources, SourceDocuments)
		}
	}

	out.CombinedContext = FormatContext(out.Documents, out.Properties)
	return out, nil
}

// filterProperties applies the post-hoc metadata filters.
func filterProperties(matches []vectorstore.PropertyMatch, f models.SearchFilters) []vectorstore.PropertyMatch {
	if f.Empty() {
		return matches
	}
	out := make([]vectorstore.PropertyMatch, 0, len(matches))
	for _, m := range matches {
		if matchesFilters(&m.Property, f) {
			out = append(out, m)
		}
	}
	return out
}

func matchesFilters(p *models.PropertyDocument, f models.SearchFilters) bool {
	if f.MinPrice != nil && p.BasePrice < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.BasePrice > *f.MaxPrice {
		return false
	}
	if f.City != "" && !strings.EqualFold(p.City, f.City) {
		return false
	}
	if f.District != "" && !containsFold(p.District, f.District) {
		return false
	}
	if f.Location != "" && !locationOverlaps(p, f.Location) {
		return false
	}
	if f.PropertyType != "" && !strings.EqualFold(p.PropertyType, f.PropertyType) {
		return false
	}
	if f.Bedrooms != nil && p.Bedrooms != *f.Bedrooms {
		return false
	}
	if f.MinArea != nil && p.Area < *f.MinArea {
		return false
	}
	if f.MaxArea != nil && p.Area > *f.MaxArea {
		return false
	}
	if len(f.Amenities) > 0 && !subset(f.Amenities, p.Amenities) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// locationOverlaps checks each comma-separated part of the wanted location
// against the property's location fields.
func locationOverlaps(p *models.PropertyDocument, location string) bool {
	fields := strings.ToLower(p.City + " " + p.District + " " + p.ProjectName)
	for _, part := range strings.Split(location, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" && strings.Contains(fields, part) {
			return true
		}
	}
	return false
}

// subset reports whether every wanted amenity appears in have (case-folded).
func subset(want, have []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if strings.EqualFold(w, h) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
