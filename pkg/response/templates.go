package response

import (
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// template holds the three language renditions of one canned reply.
// {name} and {agent} placeholders are substituted when known.
type template struct {
	ar    string
	en    string
	mixed string
}

func (t template) render(language, customerName, agentName string) string {
	var text string
	switch language {
	case "ar":
		text = t.ar
	case "en":
		text = t.en
	default:
		text = t.mixed
	}
	name := strings.TrimSpace(customerName)
	if name == "" {
		text = strings.ReplaceAll(text, " {name}", "")
	}
	text = strings.ReplaceAll(text, "{name}", name)
	text = strings.ReplaceAll(text, "{agent}", strings.TrimSpace(agentName))
	return strings.TrimSpace(text)
}

var greetingTemplate = template{
	ar:    "مرحباً {name}! أنا المساعد العقاري الخاص بـ {agent}. كيف أقدر أساعدك في البحث عن عقارك المناسب؟",
	en:    "Hello {name}! I'm the real-estate assistant for {agent}. How can I help you find the right property?",
	mixed: "مرحباً {name}! / Hello! أنا المساعد العقاري الخاص بـ {agent}. How can I help you find the right property? كيف أقدر أساعدك؟",
}

var goodbyeTemplate = template{
	ar:    "شكراً لتواصلك معنا {name}! لو احتجت أي مساعدة تانية، أنا موجود في أي وقت. مع السلامة!",
	en:    "Thank you for reaching out, {name}! If you need anything else I'm here any time. Goodbye!",
	mixed: "شكراً لتواصلك معنا {name}! Thank you! لو احتجت أي مساعدة تانية أنا موجود. Goodbye!",
}

var agentRequestTemplate = template{
	ar:    "تمام {name}، جاري تحويلك لأحد موظفينا وهيتواصل معك في أقرب وقت.",
	en:    "Sure {name}, I'm transferring you to one of our agents. Someone will be with you shortly.",
	mixed: "تمام {name}! I'm transferring you to one of our agents. هيتواصل معك حد من فريقنا في أقرب وقت.",
}

var noResultsTemplate = template{
	ar:    "للأسف مش لاقي عقارات مطابقة لطلبك حالياً. ممكن نوسع البحث شوية أو تسيبلي تفاصيل أكتر؟",
	en:    "I couldn't find properties matching your request right now. Could we widen the search, or can you share more details?",
	mixed: "للأسف مش لاقي عقارات مطابقة حالياً. I couldn't find matching properties right now — could we widen the search?",
}

// fallbackTemplate is sent when the LLM is unavailable; the pipeline still
// persists the user message and transmits this.
var fallbackTemplate = template{
	ar:    "عذراً، حصلت مشكلة مؤقتة. حاول تاني بعد لحظات من فضلك.",
	en:    "Sorry, something went wrong on our side. Please try again in a moment.",
	mixed: "عذراً، حصلت مشكلة مؤقتة. Sorry — please try again in a moment.",
}

var resumeTemplate = template{
	ar:    "رجعت معاك تاني {name}! أقدر أساعدك في إيه؟",
	en:    "I'm back with you, {name}! How can I help?",
	mixed: "رجعت معاك تاني {name}! I'm back — how can I help?",
}

// FallbackMessage is the bilingual service-degradation reply.
func FallbackMessage(language string) string {
	return fallbackTemplate.render(language, "", "")
}

// ResumeMessage is the bilingual "AI is back" reply after an agent releases
// the conversation.
func ResumeMessage(language, customerName string) string {
	return resumeTemplate.render(language, customerName, "")
}

// templateFor returns the canned reply for template-intents, or "" when the
// intent flows through the LLM pipeline. Zero-result property inquiries also
// short-circuit.
func templateFor(in Input) string {
	switch in.Intent {
	case models.IntentGreeting:
		return greetingTemplate.render(in.Language, in.CustomerName, in.AgentName)
	case models.IntentGoodbye:
		return goodbyeTemplate.render(in.Language, in.CustomerName, in.AgentName)
	case models.IntentAgentRequest:
		return agentRequestTemplate.render(in.Language, in.CustomerName, in.AgentName)
	case models.IntentPropertyInquiry:
		if len(in.Properties) == 0 {
			return noResultsTemplate.render(in.Language, in.CustomerName, in.AgentName)
		}
	}
	return ""
}
