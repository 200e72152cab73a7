package escalation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/llm"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

const summaryPrompt = `You are preparing a handoff summary for a human real-estate agent taking over from an AI assistant. Write a short bullet-style overview: who the customer is, what they are looking for, what has been discussed, and why the conversation is being escalated. Be factual and concise.`

// BuildSummary asks the LLM for a handoff overview. On failure the
// deterministic basic summary is returned instead, never an error: handoff
// must not stall on a summary.
func (h *Handoff) BuildSummary(ctx context.Context, sess *models.Session, trigger models.EscalationTrigger) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Escalation trigger: %s\n\n", trigger)
	if sess.ExtractedInfo != nil {
		fmt.Fprintf(&sb, "Known preferences: %s\n\n", describeInfo(sess.ExtractedInfo))
	}
	sb.WriteString("Conversation:\n")
	for _, m := range sess.MessageHistory {
		fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
	}

	result, err := h.llm.Generate(ctx, llm.Request{
		System:    summaryPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		MaxTokens: 512,
	})
	if err != nil {
		h.logger.Warn("Summary generation failed, using basic summary", "error", err)
		return BasicSummary(sess, trigger)
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return BasicSummary(sess, trigger)
	}
	return text
}

// BasicSummary is the deterministic fallback: extracted info plus the last
// three messages.
func BasicSummary(sess *models.Session, trigger models.EscalationTrigger) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Escalated (%s).\n", trigger)
	if sess.ExtractedInfo != nil {
		fmt.Fprintf(&sb, "Preferences: %s\n", describeInfo(sess.ExtractedInfo))
	}
	sb.WriteString("Last messages:\n")
	for _, m := range sess.LastMessages(3) {
		fmt.Fprintf(&sb, "- [%s] %s\n", m.Role, m.Content)
	}
	return strings.TrimSpace(sb.String())
}

func describeInfo(info *models.ExtractedInfo) string {
	var parts []string
	if info.CustomerName != "" {
		parts = append(parts, "name "+info.CustomerName)
	}
	if info.Budget != nil {
		parts = append(parts, fmt.Sprintf("budget %.0f", *info.Budget))
	}
	if info.Location != "" {
		parts = append(parts, "location "+info.Location)
	}
	if info.PropertyType != "" {
		parts = append(parts, "type "+info.PropertyType)
	}
	if info.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d bedrooms", *info.Bedrooms))
	}
	if info.Urgency != "" {
		parts = append(parts, "urgency "+info.Urgency)
	}
	if len(parts) == 0 {
		return "none captured yet"
	}
	return strings.Join(parts, ", ")
}
