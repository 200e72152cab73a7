// Package escalation decides when and how a conversation moves from the AI to
// a human agent.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/llm"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// Repeated-question detection parameters: Jaccard word-set similarity against
// each of the last five user messages; two or more hits at ≥ 0.7 escalate.
const (
	repeatSimilarityThreshold = 0.7
	repeatWindow              = 5
	repeatMinHits             = 2
)

var explicitRequestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(talk|speak|connect)\s+(to|with)\s+(an?\s+)?(human|agent|person|representative|someone)\b`),
	regexp.MustCompile(`(?i)\b(real|actual)\s+(person|human|agent)\b`),
	regexp.MustCompile(`عايز\s+(اكلم|أكلم)\s+(حد|موظف|انسان|إنسان)`),
	regexp.MustCompile(`(كلمني|وصلني)\s+(ب|مع)?\s*(موظف|مندوب|حد مسؤول)`),
	regexp.MustCompile(`مش\s+عايز\s+(روبوت|بوت)`),
}

var complaintPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(complaint|complain|terrible|awful|worst|unacceptable|disappointed)\b`),
	regexp.MustCompile(`(?i)\bbad\s+(service|experience)\b`),
	regexp.MustCompile(`(شكوى|استياء|خدمة سيئة|مش راضي|زعلان|تجربة سيئة|غير مقبول)`),
}

var negotiationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(discount|negotiate|better\s+(price|deal|offer)|lower\s+the\s+price|best\s+price)\b`),
	regexp.MustCompile(`(?i)\bspecial\s+(deal|offer)\b`),
	regexp.MustCompile(`(خصم|تخفيض|اتفاصل|نتفاوض|اخر سعر|آخر سعر|احسن سعر|أحسن سعر|عرض خاص)`),
}

// Detector evaluates the six escalation triggers in order; the first match
// wins. The two LLM probes run last because they cost a completion each.
type Detector struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewDetector creates a detector over the given completion client.
func NewDetector(client llm.Client) *Detector {
	return &Detector{
		llm:    client,
		logger: slog.Default().With("component", "escalation-detector"),
	}
}

// Detect runs the trigger chain for one inbound message. history is the
// session's message list, oldest first.
func (d *Detector) Detect(ctx context.Context, message string, history []models.MessageEntry) *models.EscalationDecision {
	if decision := matchPatterns(message, explicitRequestPatterns, models.TriggerExplicitRequest,
		"customer explicitly asked for a human"); decision != nil {
		return decision
	}
	if decision := matchPatterns(message, complaintPatterns, models.TriggerComplaint,
		"customer expressed dissatisfaction"); decision != nil {
		return decision
	}
	if decision := matchPatterns(message, negotiationPatterns, models.TriggerNegotiationRequest,
		"customer wants to negotiate beyond listed terms"); decision != nil {
		return decision
	}
	if decision := d.detectRepeatedQuestion(message, history); decision != nil {
		return decision
	}
	if decision := d.detectFrustration(ctx, message, history); decision != nil {
		return decision
	}
	if decision := d.detectComplexQuery(ctx, message); decision != nil {
		return decision
	}
	return &models.EscalationDecision{ShouldEscalate: false}
}

func matchPatterns(message string, patterns []*regexp.Regexp, trigger models.EscalationTrigger, reason string) *models.EscalationDecision {
	for _, p := range patterns {
		if p.MatchString(message) {
			return &models.EscalationDecision{
				ShouldEscalate: true,
				Trigger:        trigger,
				Confidence:     0.95,
				Reason:         reason,
			}
		}
	}
	return nil
}

// detectRepeatedQuestion compares the current message's word set against each
// of the last five user messages.
func (d *Detector) detectRepeatedQuestion(message string, history []models.MessageEntry) *models.EscalationDecision {
	current := wordSet(message)
	if len(current) == 0 {
		return nil
	}

	var userMessages []models.MessageEntry
	for _, m := range history {
		if m.Role == models.RoleUser {
			userMessages = append(userMessages, m)
		}
	}
	if len(userMessages) > repeatWindow {
		userMessages = userMessages[len(userMessages)-repeatWindow:]
	}

	hits := 0
	for _, m := range userMessages {
		if JaccardSimilarity(current, wordSet(m.Content)) >= repeatSimilarityThreshold {
			hits++
		}
	}
	if hits < repeatMinHits {
		return nil
	}
	return &models.EscalationDecision{
		ShouldEscalate: true,
		Trigger:        models.TriggerRepeatedQuestion,
		Confidence:     0.85,
		Reason:         fmt.Sprintf("customer repeated the same question %d times", hits),
	}
}

// probeTemperature keeps the sentiment/complexity probes stable.
var probeTemperature = 0.3

const frustrationPrompt = `You are a sentiment probe for a real-estate assistant. The customer writes in Arabic or English. Decide whether the customer sounds frustrated or angry with the conversation so far.

Respond with ONLY JSON: {"frustrated": true|false, "confidence": 0.0}`

const complexityPrompt = `You are a complexity probe for a real-estate assistant. Decide whether this customer question needs human expertise (legal disputes, custom contracts, multi-party deals) rather than an AI answer.

Respond with ONLY JSON: {"complex": true|false, "confidence": 0.0}`

type probeResult struct {
	Frustrated bool    `json:"frustrated"`
	Complex    bool    `json:"complex"`
	Confidence float64 `json:"confidence"`
}

func (d *Detector) runProbe(ctx context.Context, system, user string) (*probeResult, error) {
	result, err := d.llm.Generate(ctx, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user}},
		MaxTokens:   128,
		Temperature: &probeTemperature,
	})
	if err != nil {
		return nil, err
	}

	start := strings.IndexByte(result.Text, '{')
	end := strings.LastIndexByte(result.Text, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("probe returned no JSON")
	}
	var probe probeResult
	if err := json.Unmarshal([]byte(result.Text[start:end+1]), &probe); err != nil {
		return nil, fmt.Errorf("probe JSON invalid: %w", err)
	}
	return &probe, nil
}

func (d *Detector) detectFrustration(ctx context.Context, message string, history []models.MessageEntry) *models.EscalationDecision {
	var sb strings.Builder
	for _, m := range lastEntries(history, 4) {
		fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&sb, "[user] %s", message)

	probe, err := d.runProbe(ctx, frustrationPrompt, sb.String())
	if err != nil {
		d.logger.Warn("Frustration probe failed", "error", err)
		return nil
	}
	if !probe.Frustrated {
		return nil
	}
	return &models.EscalationDecision{
		ShouldEscalate: true,
		Trigger:        models.TriggerFrustration,
		Confidence:     probe.Confidence,
		Reason:         "customer sounds frustrated",
	}
}

func (d *Detector) detectComplexQuery(ctx context.Context, message string) *models.EscalationDecision {
	probe, err := d.runProbe(ctx, complexityPrompt, message)
	if err != nil {
		d.logger.Warn("Complexity probe failed", "error", err)
		return nil
	}
	if !probe.Complex {
		return nil
	}
	return &models.EscalationDecision{
		ShouldEscalate: true,
		Trigger:        models.TriggerComplexQuery,
		Confidence:     probe.Confidence,
		Reason:         "question needs human expertise",
	}
}

func lastEntries(history []models.MessageEntry, n int) []models.MessageEntry {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

var wordSplit = regexp.MustCompile(`[\s\p{P}]+`)

// wordSet tokenizes a message into its lowercase word set.
func wordSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range wordSplit.Split(strings.ToLower(s), -1) {
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}

// JaccardSimilarity is |A∩B| / |A∪B| over word sets.
func JaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
