package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

func TestParseClassificationCleanJSON(t *testing.T) {
	resp := `{"intent": "PRICE_INQUIRY", "entities": {"budget": 3000000, "city": " New Cairo ", "propertyType": "Apartment"}, "confidence": 0.9, "explanation": "asks about price"}`

	c, err := parseClassification(resp)
	require.NoError(t, err)
	assert.Equal(t, models.IntentPriceInquiry, c.Intent)
	require.NotNil(t, c.Entities.Budget)
	assert.Equal(t, 3000000.0, *c.Entities.Budget)
	assert.Equal(t, "New Cairo", c.Entities.City)
	assert.Equal(t, "apartment", c.Entities.PropertyType)
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)
}

func TestParseClassificationSkipsPreamble(t *testing.T) {
	resp := "Sure! Here is the classification:\n```json\n{\"intent\": \"GREETING\", \"entities\": {}, \"confidence\": 1.0}\n```"

	c, err := parseClassification(resp)
	require.NoError(t, err)
	assert.Equal(t, models.IntentGreeting, c.Intent)
}

func TestParseClassificationNestedBraces(t *testing.T) {
	resp := `prefix {"intent": "PROPERTY_INQUIRY", "entities": {"note": "has {brace} inside"}, "confidence": 0.8} suffix`

	c, err := parseClassification(resp)
	require.NoError(t, err)
	assert.Equal(t, models.IntentPropertyInquiry, c.Intent)
	assert.Equal(t, "has {brace} inside", c.Entities.Extra["note"])
}

func TestParseClassificationCoercesUnknownIntent(t *testing.T) {
	resp := `{"intent": "BUY_NOW", "entities": {}, "confidence": 0.7}`

	c, err := parseClassification(resp)
	require.NoError(t, err)
	assert.Equal(t, models.IntentPropertyInquiry, c.Intent)
}

func TestParseClassificationDropsNonNumericNumbers(t *testing.T) {
	resp := `{"intent": "PROPERTY_INQUIRY", "entities": {"bedrooms": "three", "budget": "a lot"}, "confidence": 0.7}`

	c, err := parseClassification(resp)
	require.NoError(t, err)
	assert.Nil(t, c.Entities.Bedrooms)
	assert.Nil(t, c.Entities.Budget)
}

func TestParseClassificationClampsConfidence(t *testing.T) {
	resp := `{"intent": "GREETING", "entities": {}, "confidence": 1.7}`

	c, err := parseClassification(resp)
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Confidence)
}

func TestParseClassificationNoJSON(t *testing.T) {
	_, err := parseClassification("I could not classify that message.")
	assert.Error(t, err)
}

func TestFallbackClassify(t *testing.T) {
	tests := []struct {
		text string
		want models.Intent
	}{
		{"مرحبا", models.IntentGreeting},
		{"Hello there", models.IntentGreeting},
		{"I want to talk to an agent", models.IntentAgentRequest},
		{"عايز اكلم موظف", models.IntentAgentRequest},
		{"بكام الشقة دي", models.IntentPriceInquiry},
		{"do you offer installment plans?", models.IntentPaymentPlans},
		{"فين الموقع بالظبط", models.IntentLocationInfo},
		{"random text with nothing", models.IntentGeneralQuestion},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			c := FallbackClassify(tt.text)
			assert.Equal(t, tt.want, c.Intent)
			assert.Equal(t, 0.5, c.Confidence)
			assert.Equal(t, 0, c.Entities.FilledFieldCount())
		})
	}
}
