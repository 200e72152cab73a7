package models

import "time"

// PaymentPlan is one financing option attached to a property.
type PaymentPlan struct {
	Name               string  `json:"name,omitempty"`
	DownPaymentPercent float64 `json:"downPaymentPercent"`
	InstallmentYears   int     `json:"installmentYears"`
	MonthlyPayment     float64 `json:"monthlyPayment,omitempty"`
}

// PropertyDocument is a listed property with its search embedding. The stored
// embedding is unit-normalized so cosine similarity stays meaningful after
// multi-chunk aggregation.
type PropertyDocument struct {
	ID      string `json:"id" db:"id"`
	AgentID string `json:"agentId" db:"agent_id"`

	ProjectName string  `json:"projectName,omitempty" db:"project_name"`
	City        string  `json:"city" db:"city"`
	District    string  `json:"district,omitempty" db:"district"`
	Latitude    float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude   float64 `json:"longitude,omitempty" db:"longitude"`

	BasePrice     float64 `json:"basePrice" db:"base_price"`
	PricePerMeter float64 `json:"pricePerMeter,omitempty" db:"price_per_meter"`
	Currency      string  `json:"currency" db:"currency"`

	PropertyType string  `json:"propertyType" db:"property_type"`
	Area         float64 `json:"area" db:"area"`
	Bedrooms     int     `json:"bedrooms" db:"bedrooms"`
	Bathrooms    int     `json:"bathrooms" db:"bathrooms"`
	Floors       int     `json:"floors,omitempty" db:"floors"`

	Amenities    []string      `json:"amenities,omitempty"`
	PaymentPlans []PaymentPlan `json:"paymentPlans,omitempty"`
	DeliveryDate *time.Time    `json:"deliveryDate,omitempty" db:"delivery_date"`
	Description  string        `json:"description,omitempty" db:"description"`
	MediaURLs    []string      `json:"mediaUrls,omitempty"`

	Embedding     []float32 `json:"-"`
	EmbeddingText string    `json:"embeddingText,omitempty" db:"embedding_text"`
}

// DocumentType classifies a knowledge document.
type DocumentType string

// Knowledge document types.
const (
	DocumentTypeBrochure  DocumentType = "brochure"
	DocumentTypeFloorPlan DocumentType = "floor_plan"
	DocumentTypeContract  DocumentType = "contract"
	DocumentTypePolicy    DocumentType = "policy"
	DocumentTypeFAQ       DocumentType = "faq"
	DocumentTypeGuide     DocumentType = "guide"
)

// KnowledgeDocument is a non-property knowledge source (policies, FAQs,
// guides) retrievable alongside properties.
type KnowledgeDocument struct {
	ID           string       `json:"id" db:"id"`
	AgentID      string       `json:"agentId" db:"agent_id"`
	DocumentType DocumentType `json:"documentType" db:"document_type"`
	Category     string       `json:"category,omitempty" db:"category"`
	Title        string       `json:"title" db:"title"`
	Description  string       `json:"description,omitempty" db:"description"`

	ContentChunks []string  `json:"contentChunks,omitempty"`
	Embedding     []float32 `json:"-"`
}
