// Package response turns raw LLM text into the rich reply delivered to the
// customer: templates, bilingual prices, property cards, CTA buttons, and an
// optional map pin.
package response

import "github.com/ahmmed-fouad/real-estate-agent/pkg/models"

// Button is one CTA attached to the reply. WhatsApp caps interactive replies
// at three buttons.
type Button struct {
	Payload string `json:"payload"`
	TitleEN string `json:"titleEn"`
	TitleAR string `json:"titleAr"`
}

// PropertyCard is the structured summary of one property.
type PropertyCard struct {
	PropertyID   string  `json:"propertyId"`
	ProjectName  string  `json:"projectName,omitempty"`
	City         string  `json:"city"`
	District     string  `json:"district,omitempty"`
	PropertyType string  `json:"propertyType"`
	Price        string  `json:"price"`
	Area         float64 `json:"area"`
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    int     `json:"bathrooms"`
	ImageURL     string  `json:"imageUrl,omitempty"`
}

// Rich is the post-processed reply.
type Rich struct {
	Text               string              `json:"text"`
	Cards              []PropertyCard      `json:"cards,omitempty"`
	Buttons            []Button            `json:"buttons,omitempty"`
	Location           *models.LocationRef `json:"location,omitempty"`
	RequiresEscalation bool                `json:"requiresEscalation"`
}

// Input carries everything the post-processor needs for one reply.
type Input struct {
	Text          string
	Intent        models.Intent
	Properties    []models.PropertyDocument
	CustomerName  string
	AgentName     string
	ExtractedInfo *models.ExtractedInfo
	Language      string // ar | en | mixed
}
