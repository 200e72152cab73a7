// Package intent classifies customer messages and extracts structured
// entities, accumulating them across turns.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/llm"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

const classifyPrompt = `You are an intent classifier for a real-estate sales assistant serving Egyptian customers in Arabic and English.

Classify the customer message into exactly one intent:
PROPERTY_INQUIRY, PRICE_INQUIRY, PAYMENT_PLANS, LOCATION_INFO, SCHEDULE_VIEWING, COMPARISON, GENERAL_QUESTION, COMPLAINT, AGENT_REQUEST, GREETING, GOODBYE

Extract any entities mentioned: budget, minPrice, maxPrice, location, city, district, propertyType, bedrooms, bathrooms, minArea, maxArea, deliveryTimeline, urgency, paymentMethod, downPaymentPercentage, installmentYears, purpose, customerName.

Respond with ONLY a JSON object:
{"intent": "...", "entities": {...}, "confidence": 0.0, "explanation": "..."}`

// classifyTemperature keeps extraction deterministic-ish.
var classifyTemperature = 0.2

// Classifier runs LLM-driven intent and entity extraction with a rule-based
// bilingual fallback.
type Classifier struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewClassifier creates a classifier over the given completion client.
func NewClassifier(client llm.Client) *Classifier {
	return &Classifier{
		llm:    client,
		logger: slog.Default().With("component", "intent-classifier"),
	}
}

// Classify labels the current user text. Up to the last three history
// messages are passed as context. On LLM failure or unparseable output the
// bilingual keyword fallback answers with confidence 0.5 and no entities.
func (c *Classifier) Classify(ctx context.Context, text string, history []models.MessageEntry) *models.Classification {
	user := text
	if n := len(history); n > 0 {
		recent := history
		if n > 3 {
			recent = history[n-3:]
		}
		var sb strings.Builder
		sb.WriteString("Recent conversation:\n")
		for _, m := range recent {
			fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
		}
		sb.WriteString("\nCurrent message: ")
		sb.WriteString(text)
		user = sb.String()
	}

	result, err := c.llm.Generate(ctx, llm.Request{
		System:      classifyPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user}},
		Temperature: &classifyTemperature,
	})
	if err != nil {
		c.logger.Error("Classification LLM call failed, using keyword fallback", "error", err)
		return FallbackClassify(text)
	}

	classification, err := parseClassification(result.Text)
	if err != nil {
		c.logger.Warn("Classification response unparseable, using keyword fallback", "error", err)
		return FallbackClassify(text)
	}
	return classification
}

// rawClassification mirrors the JSON protocol; entities arrive untyped so
// out-of-range and mistyped values can be dropped field by field.
type rawClassification struct {
	Intent      string         `json:"intent"`
	Entities    map[string]any `json:"entities"`
	Confidence  float64        `json:"confidence"`
	Explanation string         `json:"explanation"`
}

// parseClassification scans the response for the first balanced {...}
// substring, parses it, and validates field by field.
func parseClassification(response string) (*models.Classification, error) {
	obj, err := firstJSONObject(response)
	if err != nil {
		return nil, err
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("classification JSON invalid: %w", err)
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.Classification{
		Intent:      models.CoerceIntent(strings.ToUpper(strings.TrimSpace(raw.Intent))),
		Entities:    entitiesFromMap(raw.Entities),
		Confidence:  confidence,
		Explanation: strings.TrimSpace(raw.Explanation),
	}, nil
}

// firstJSONObject extracts the first balanced top-level JSON object.
func firstJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

// lowercased entity string fields.
var lowercasedFields = map[string]struct{}{
	"propertyType": {}, "urgency": {}, "purpose": {}, "paymentMethod": {},
}

// entitiesFromMap converts the untyped entity map: numeric entities are kept
// only if numeric, strings are trimmed, selected fields lowercased, unknown
// keys carried through in Extra.
func entitiesFromMap(m map[string]any) *models.ExtractedInfo {
	info := &models.ExtractedInfo{}
	if len(m) == 0 {
		return info
	}
	for key, val := range m {
		if val == nil {
			continue
		}
		switch key {
		case "budget":
			info.Budget = asFloat(val)
		case "minPrice":
			info.MinPrice = asFloat(val)
		case "maxPrice":
			info.MaxPrice = asFloat(val)
		case "location":
			info.Location = asString(val)
		case "city":
			info.City = asString(val)
		case "district":
			info.District = asString(val)
		case "propertyType":
			info.PropertyType = asString(val)
		case "bedrooms":
			info.Bedrooms = asInt(val)
		case "bathrooms":
			info.Bathrooms = asInt(val)
		case "area":
			info.Area = asFloat(val)
		case "minArea":
			info.MinArea = asFloat(val)
		case "maxArea":
			info.MaxArea = asFloat(val)
		case "deliveryTimeline":
			info.DeliveryTimeline = asString(val)
		case "urgency":
			info.Urgency = asString(val)
		case "paymentMethod":
			info.PaymentMethod = asString(val)
		case "downPaymentPercentage":
			info.DownPaymentPercentage = asFloat(val)
		case "installmentYears":
			info.InstallmentYears = asInt(val)
		case "purpose":
			info.Purpose = asString(val)
		case "customerName":
			info.CustomerName = asString(val)
		default:
			if info.Extra == nil {
				info.Extra = map[string]any{}
			}
			info.Extra[key] = val
		}
		if _, ok := lowercasedFields[key]; ok {
			switch key {
			case "propertyType":
				info.PropertyType = strings.ToLower(info.PropertyType)
			case "urgency":
				info.Urgency = strings.ToLower(info.Urgency)
			case "purpose":
				info.Purpose = strings.ToLower(info.Purpose)
			case "paymentMethod":
				info.PaymentMethod = strings.ToLower(info.PaymentMethod)
			}
		}
	}
	return info
}

func asFloat(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case int:
		f := float64(x)
		return &f
	}
	return nil
}

func asInt(v any) *int {
	if f, ok := v.(float64); ok {
		n := int(f)
		return &n
	}
	if n, ok := v.(int); ok {
		return &n
	}
	return nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
