package dispatcher

import (
	"fmt"
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// buildSystemPrompt renders the persona and the session's accumulated
// knowledge for one generation.
func buildSystemPrompt(sess *models.Session, agentName, companyName string) string {
	var sb strings.Builder

	sb.WriteString("You are a helpful real-estate sales assistant")
	if agentName != "" {
		fmt.Fprintf(&sb, " working for %s", agentName)
	}
	if companyName != "" {
		fmt.Fprintf(&sb, " at %s", companyName)
	}
	sb.WriteString(". You help customers in Egypt find properties over WhatsApp.\n\n")

	switch sess.LanguagePreference {
	case "ar":
		sb.WriteString("Reply in Egyptian Arabic.\n")
	case "en":
		sb.WriteString("Reply in English.\n")
	default:
		sb.WriteString("Reply in the customer's mix of Arabic and English.\n")
	}
	sb.WriteString("Keep replies short and conversational; this is a chat, not an email. Never invent prices, availability, or legal terms.\n")

	if info := sess.ExtractedInfo; info != nil && info.FilledFieldCount() > 0 {
		sb.WriteString("\nWhat you already know about this customer:\n")
		if info.CustomerName != "" {
			fmt.Fprintf(&sb, "- Name: %s\n", info.CustomerName)
		}
		if info.Budget != nil {
			fmt.Fprintf(&sb, "- Budget: %.0f EGP\n", *info.Budget)
		}
		if info.Location != "" {
			fmt.Fprintf(&sb, "- Preferred location: %s\n", info.Location)
		}
		if info.PropertyType != "" {
			fmt.Fprintf(&sb, "- Property type: %s\n", info.PropertyType)
		}
		if info.Bedrooms != nil {
			fmt.Fprintf(&sb, "- Bedrooms: %d\n", *info.Bedrooms)
		}
		if info.Urgency != "" {
			fmt.Fprintf(&sb, "- Urgency: %s\n", info.Urgency)
		}
		if info.PaymentMethod != "" {
			fmt.Fprintf(&sb, "- Payment method: %s\n", info.PaymentMethod)
		}
	}

	if sess.CurrentTopic != "" {
		fmt.Fprintf(&sb, "\nCurrent topic: %s\n", sess.CurrentTopic)
	}
	return sb.String()
}
