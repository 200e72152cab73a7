package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// PGVectorStore implements PropertyIndex and DocumentIndex over pgvector.
// Cosine distance (<=>) backs the similarity ranking; stored vectors are
// unit-normalized by the ingestion path so 1-distance is true cosine
// similarity.
type PGVectorStore struct {
	db *sqlx.DB
}

// NewPGVectorStore wraps an existing database handle.
func NewPGVectorStore(db *sqlx.DB) *PGVectorStore {
	return &PGVectorStore{db: db}
}

// VectorLiteral renders a vector in pgvector's input syntax.
func VectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

type propertyRow struct {
	ID            string     `db:"id"`
	AgentID       string     `db:"agent_id"`
	ProjectName   string     `db:"project_name"`
	City          string     `db:"city"`
	District      string     `db:"district"`
	Latitude      float64    `db:"latitude"`
	Longitude     float64    `db:"longitude"`
	BasePrice     float64    `db:"base_price"`
	PricePerMeter float64    `db:"price_per_meter"`
	Currency      string     `db:"currency"`
	PropertyType  string     `db:"property_type"`
	Area          float64    `db:"area"`
	Bedrooms      int        `db:"bedrooms"`
	Bathrooms     int        `db:"bathrooms"`
	Floors        int        `db:"floors"`
	Amenities     []byte     `db:"amenities"`
	PaymentPlans  []byte     `db:"payment_plans"`
	DeliveryDate  *time.Time `db:"delivery_date"`
	Description   string     `db:"description"`
	MediaURLs     []byte     `db:"media_urls"`
	EmbeddingText string     `db:"embedding_text"`
	Similarity    float64    `db:"similarity"`
}

func (r *propertyRow) toModel() (models.PropertyDocument, error) {
	p := models.PropertyDocument{
		ID:            r.ID,
		AgentID:       r.AgentID,
		ProjectName:   r.ProjectName,
		City:          r.City,
		District:      r.District,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		BasePrice:     r.BasePrice,
		PricePerMeter: r.PricePerMeter,
		Currency:      r.Currency,
		PropertyType:  r.PropertyType,
		Area:          r.Area,
		Bedrooms:      r.Bedrooms,
		Bathrooms:     r.Bathrooms,
		Floors:        r.Floors,
		DeliveryDate:  r.DeliveryDate,
		Description:   r.Description,
		EmbeddingText: r.EmbeddingText,
	}
	if len(r.Amenities) > 0 {
		if err := json.Unmarshal(r.Amenities, &p.Amenities); err != nil {
			return p, fmt.Errorf("bad amenities column for property %s: %w", r.ID, err)
		}
	}
	if len(r.PaymentPlans) > 0 {
		if err := json.Unmarshal(r.PaymentPlans, &p.PaymentPlans); err != nil {
			return p, fmt.Errorf("bad payment_plans column for property %s: %w", r.ID, err)
		}
	}
	if len(r.MediaURLs) > 0 {
		if err := json.Unmarshal(r.MediaURLs, &p.MediaURLs); err != nil {
			return p, fmt.Errorf("bad media_urls column for property %s: %w", r.ID, err)
		}
	}
	return p, nil
}

const searchPropertiesSQL = `
SELECT id, agent_id, project_name, city, district, latitude, longitude,
       base_price, price_per_meter, currency, property_type, area,
       bedrooms, bathrooms, floors, amenities, payment_plans, delivery_date,
       description, media_urls, embedding_text,
       1 - (embedding <=> $1::vector) AS similarity
FROM properties
WHERE agent_id = $2
ORDER BY embedding <=> $1::vector
LIMIT $3`

// SearchProperties returns the top-k agent-scoped properties above threshold,
// ranked by descending cosine similarity.
func (s *PGVectorStore) SearchProperties(ctx context.Context, embedding []float32, agentID string, k int, threshold float64) ([]PropertyMatch, error) {
	var rows []propertyRow
	if err := s.db.SelectContext(ctx, &rows, searchPropertiesSQL, VectorLiteral(embedding), agentID, k); err != nil {
		return nil, fmt.Errorf("property search failed: %w", err)
	}

	matches := make([]PropertyMatch, 0, len(rows))
	for i := range rows {
		if rows[i].Similarity < threshold {
			continue
		}
		p, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		matches = append(matches, PropertyMatch{Property: p, Similarity: rows[i].Similarity})
	}
	return matches, nil
}

const upsertPropertySQL = `
INSERT INTO properties (
	id, agent_id, project_name, city, district, latitude, longitude,
	base_price, price_per_meter, currency, property_type, area,
	bedrooms, bathrooms, floors, amenities, payment_plans, delivery_date,
	description, media_urls, embedding, embedding_text
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21::vector,$22)
ON CONFLICT (id) DO UPDATE SET
	project_name = EXCLUDED.project_name,
	city = EXCLUDED.city,
	district = EXCLUDED.district,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	base_price = EXCLUDED.base_price,
	price_per_meter = EXCLUDED.price_per_meter,
	currency = EXCLUDED.currency,
	property_type = EXCLUDED.property_type,
	area = EXCLUDED.area,
	bedrooms = EXCLUDED.bedrooms,
	bathrooms = EXCLUDED.bathrooms,
	floors = EXCLUDED.floors,
	amenities = EXCLUDED.amenities,
	payment_plans = EXCLUDED.payment_plans,
	delivery_date = EXCLUDED.delivery_date,
	description = EXCLUDED.description,
	media_urls = EXCLUDED.media_urls,
	embedding = EXCLUDED.embedding,
	embedding_text = EXCLUDED.embedding_text`

// UpsertProperty stores the embedding together with the row fields.
func (s *PGVectorStore) UpsertProperty(ctx context.Context, p *models.PropertyDocument) error {
	amenities, err := json.Marshal(p.Amenities)
	if err != nil {
		return fmt.Errorf("failed to encode amenities: %w", err)
	}
	plans, err := json.Marshal(p.PaymentPlans)
	if err != nil {
		return fmt.Errorf("failed to encode payment plans: %w", err)
	}
	media, err := json.Marshal(p.MediaURLs)
	if err != nil {
		return fmt.Errorf("failed to encode media urls: %w", err)
	}

	_, err = s.db.ExecContext(ctx, upsertPropertySQL,
		p.ID, p.AgentID, p.ProjectName, p.City, p.District, p.Latitude, p.Longitude,
		p.BasePrice, p.PricePerMeter, p.Currency, p.PropertyType, p.Area,
		p.Bedrooms, p.Bathrooms, p.Floors, amenities, plans, p.DeliveryDate,
		p.Description, media, VectorLiteral(p.Embedding), p.EmbeddingText)
	if err != nil {
		return fmt.Errorf("property upsert failed: %w", err)
	}
	return nil
}

// DeleteProperty removes one property, scoped to the owning agent.
func (s *PGVectorStore) DeleteProperty(ctx context.Context, agentID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM properties WHERE agent_id = $1 AND id = $2`, agentID, id)
	if err != nil {
		return fmt.Errorf("property delete failed: %w", err)
	}
	return nil
}

type documentRow struct {
	ID            string  `db:"id"`
	AgentID       string  `db:"agent_id"`
	DocumentType  string  `db:"document_type"`
	Category      string  `db:"category"`
	Title         string  `db:"title"`
	Description   string  `db:"description"`
	ContentChunks []byte  `db:"content_chunks"`
	Similarity    float64 `db:"similarity"`
}

const searchDocumentsSQL = `
SELECT id, agent_id, document_type, category, title, description, content_chunks,
       1 - (embedding <=> $1::vector) AS similarity
FROM knowledge_documents
WHERE agent_id = $2
ORDER BY embedding <=> $1::vector
LIMIT $3`

// SearchDocuments returns the top-k agent-scoped knowledge documents above
// threshold.
func (s *PGVectorStore) SearchDocuments(ctx context.Context, embedding []float32, agentID string, k int, threshold float64) ([]DocumentMatch, error) {
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, searchDocumentsSQL, VectorLiteral(embedding), agentID, k); err != nil {
		return nil, fmt.Errorf("document search failed: %w", err)
	}

	matches := make([]DocumentMatch, 0, len(rows))
	for i := range rows {
		if rows[i].Similarity < threshold {
			continue
		}
		d := models.KnowledgeDocument{
			ID:           rows[i].ID,
			AgentID:      rows[i].AgentID,
			DocumentType: models.DocumentType(rows[i].DocumentType),
			Category:     rows[i].Category,
			Title:        rows[i].Title,
			Description:  rows[i].Description,
		}
		if len(rows[i].ContentChunks) > 0 {
			if err := json.Unmarshal(rows[i].ContentChunks, &d.ContentChunks); err != nil {
				return nil, fmt.Errorf("bad content_chunks for document %s: %w", d.ID, err)
			}
		}
		matches = append(matches, DocumentMatch{Document: d, Similarity: rows[i].Similarity})
	}
	return matches, nil
}

const upsertDocumentSQL = `
INSERT INTO knowledge_documents (
	id, agent_id, document_type, category, title, description, content_chunks, embedding
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::vector)
ON CONFLICT (id) DO UPDATE SET
	document_type = EXCLUDED.document_type,
	category = EXCLUDED.category,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	content_chunks = EXCLUDED.content_chunks,
	embedding = EXCLUDED.embedding`

// UpsertDocument stores a knowledge document with its embedding.
func (s *PGVectorStore) UpsertDocument(ctx context.Context, d *models.KnowledgeDocument) error {
	chunks, err := json.Marshal(d.ContentChunks)
	if err != nil {
		return fmt.Errorf("failed to encode content chunks: %w", err)
	}
	_, err = s.db.ExecContext(ctx, upsertDocumentSQL,
		d.ID, d.AgentID, string(d.DocumentType), d.Category, d.Title, d.Description,
		chunks, VectorLiteral(d.Embedding))
	if err != nil {
		return fmt.Errorf("document upsert failed: %w", err)
	}
	return nil
}

// DeleteDocument removes one knowledge document, scoped to the owning agent.
func (s *PGVectorStore) DeleteDocument(ctx context.Context, agentID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM knowledge_documents WHERE agent_id = $1 AND id = $2`, agentID, id)
	if err != nil {
		return fmt.Errorf("document delete failed: %w", err)
	}
	return nil
}
