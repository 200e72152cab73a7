package intent

import (
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// fallbackConfidence is reported by the keyword classifier.
const fallbackConfidence = 0.5

// keywordRules map bilingual keywords to intents, checked in order so the
// more specific intents win over PROPERTY_INQUIRY.
var keywordRules = []struct {
	intent   models.Intent
	keywords []string
}{
	{models.IntentAgentRequest, []string{"agent", "human", "representative", "موظف", "حد أكلمه", "عايز اكلم", "بني آدم"}},
	{models.IntentComplaint, []string{"complaint", "terrible", "bad service", "شكوى", "زعلان", "خدمة سيئة", "مش راضي"}},
	{models.IntentGreeting, []string{"hello", "hi ", "good morning", "مرحبا", "السلام عليكم", "اهلا", "أهلا", "صباح الخير"}},
	{models.IntentGoodbye, []string{"bye", "goodbye", "thanks, that's all", "مع السلامة", "شكرا خلاص", "الى اللقاء"}},
	{models.IntentPaymentPlans, []string{"installment", "payment plan", "down payment", "تقسيط", "قسط", "مقدم", "دفعة"}},
	{models.IntentScheduleViewing, []string{"viewing", "visit", "appointment", "معاينة", "زيارة", "ميعاد"}},
	{models.IntentPriceInquiry, []string{"price", "cost", "how much", "سعر", "بكام", "كام", "تكلفة"}},
	{models.IntentLocationInfo, []string{"where", "location", "address", "map", "فين", "موقع", "عنوان", "مكان"}},
	{models.IntentComparison, []string{"compare", "difference between", "versus", "قارن", "الفرق بين", "ولا"}},
	{models.IntentPropertyInquiry, []string{"apartment", "villa", "property", "bedroom", "compound", "شقة", "فيلا", "عقار", "غرفة", "كمبوند"}},
}

// FallbackClassify is the rule-based bilingual classifier used when the LLM
// fails or returns unparseable output. It never extracts entities.
func FallbackClassify(text string) *models.Classification {
	lower := strings.ToLower(text)

	intent := models.IntentGeneralQuestion
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				intent = rule.intent
				return &models.Classification{
					Intent:     intent,
					Entities:   &models.ExtractedInfo{},
					Confidence: fallbackConfidence,
				}
			}
		}
	}

	return &models.Classification{
		Intent:     intent,
		Entities:   &models.ExtractedInfo{},
		Confidence: fallbackConfidence,
	}
}
