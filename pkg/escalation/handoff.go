package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/llm"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/masking"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/notify"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/response"
)

// SessionStore is the session-side capability the handoff needs.
type SessionStore interface {
	Get(ctx context.Context, customerID, agentID string) (*models.Session, error)
	Update(ctx context.Context, sess *models.Session) error
	UpdateState(sess *models.Session, to models.SessionState) error
}

// Conversations is the relational-mirror capability.
type Conversations interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	SetStatus(ctx context.Context, id string, status models.ConversationStatus, metadata map[string]any) error
}

// EventAppender records analytics events.
type EventAppender interface {
	Append(ctx context.Context, agentID, eventType string, data map[string]any) (*models.AnalyticsEvent, error)
}

// AgentLookup resolves agent profiles for the notification fan-out.
type AgentLookup interface {
	Get(ctx context.Context, id string) (*models.AgentProfile, error)
}

// AgentNotifier fans out the agent-side alert.
type AgentNotifier interface {
	NotifyEscalation(ctx context.Context, in notify.Input) error
}

// CustomerSender delivers the customer-facing notification text.
type CustomerSender interface {
	SendText(ctx context.Context, to, text string) error
}

// Handoff orchestrates the transfer from AI to human agent.
type Handoff struct {
	sessions      SessionStore
	conversations Conversations
	events        EventAppender
	agents        AgentLookup
	notifier      AgentNotifier
	customer      CustomerSender
	llm           llm.Client
	logger        *slog.Logger
	now           func() time.Time
}

// NewHandoff creates the handoff orchestrator.
func NewHandoff(sessions SessionStore, conversations Conversations, events EventAppender, agents AgentLookup, notifier AgentNotifier, customer CustomerSender, client llm.Client) *Handoff {
	return &Handoff{
		sessions:      sessions,
		conversations: conversations,
		events:        events,
		agents:        agents,
		notifier:      notifier,
		customer:      customer,
		llm:           client,
		logger:        slog.Default().With("component", "escalation-handoff"),
		now:           time.Now,
	}
}

// customerNotice is the bilingual templated reply chosen by trigger.
var customerNotice = map[models.EscalationTrigger]string{
	models.TriggerExplicitRequest:    "تمام، جاري تحويلك لأحد موظفينا وهيتواصل معك في أقرب وقت.\nSure — I'm transferring you to one of our agents now. Someone will be with you shortly.",
	models.TriggerComplaint:          "أعتذر عن أي إزعاج. هحولك لموظف مسؤول يساعدك فوراً.\nI'm sorry about the trouble. I'm connecting you to a team member who will help right away.",
	models.TriggerNegotiationRequest: "تمام، هحولك لموظف المبيعات يقدر يساعدك في أفضل عرض.\nGot it — I'm connecting you to our sales agent who can discuss the best offer with you.",
	models.TriggerRepeatedQuestion:   "شكلي مش عارف أجاوبك كويس، هحولك لموظف يساعدك أحسن.\nI don't seem to be answering this well — let me connect you to a team member who can help.",
	models.TriggerFrustration:        "أعتذر لو الرد مش واضح. هحولك لموظف يتابع معك بنفسه.\nI'm sorry if this has been unclear. I'm bringing in a team member to follow up personally.",
	models.TriggerComplexQuery:       "السؤال ده محتاج خبرة موظفينا، جاري تحويلك.\nThis question needs our team's expertise — transferring you now.",
}

// Escalate runs the handoff steps: conversation row, session transition,
// summary, customer notification, agent fan-out, analytics. Auxiliary
// failures (notifications, analytics) are logged and do not fail the
// handoff; the two state writes are primary.
func (h *Handoff) Escalate(ctx context.Context, sess *models.Session, conv *models.Conversation, decision *models.EscalationDecision) error {
	log := h.logger.With("session_id", sess.SessionID,
		"conversation_id", conv.ID, "trigger", decision.Trigger)

	// 1. Conversation row first: the agent portal reads from it.
	if err := h.conversations.SetStatus(ctx, conv.ID, models.ConversationStatusWaitingAgent, map[string]any{
		"escalated":   true,
		"escalatedAt": h.now().UTC().Format(time.RFC3339),
		"trigger":     string(decision.Trigger),
	}); err != nil {
		return fmt.Errorf("failed to mark conversation waiting: %w", err)
	}

	// 2. Session transition, validated against the state machine.
	if sess.State != models.SessionStateWaitingAgent {
		if err := h.sessions.UpdateState(sess, models.SessionStateWaitingAgent); err != nil {
			return fmt.Errorf("failed to transition session: %w", err)
		}
		if err := h.sessions.Update(ctx, sess); err != nil {
			return fmt.Errorf("failed to persist escalated session: %w", err)
		}
	}

	// 3. Handoff summary (LLM with deterministic fallback).
	summary := h.BuildSummary(ctx, sess, decision.Trigger)

	// 4. Customer notification.
	notice := decision.CustomerMessage
	if notice == "" {
		notice = customerNotice[decision.Trigger]
	}
	if err := h.customer.SendText(ctx, sess.CustomerID, notice); err != nil {
		log.Error("Customer escalation notice failed", "error", err)
	}

	// 5. Agent fan-out: in-app first (inside the notifier), then channels.
	agent, err := h.agents.Get(ctx, sess.AgentID)
	if err != nil {
		log.Error("Agent lookup failed, skipping agent notification", "error", err)
	} else {
		if err := h.notifier.NotifyEscalation(ctx, notify.Input{
			Agent:          agent,
			ConversationID: conv.ID,
			CustomerPhone:  sess.CustomerID,
			CustomerName:   customerName(sess),
			Trigger:        decision.Trigger,
			Urgency:        UrgencyFor(decision.Trigger),
			Summary:        summary,
		}); err != nil {
			log.Error("Agent escalation notification failed", "error", err)
		}
	}

	// 6. Analytics.
	if _, err := h.events.Append(ctx, sess.AgentID, models.EventConversationEscalated, map[string]any{
		"conversationId": conv.ID,
		"sessionId":      sess.SessionID,
		"customerPhone":  masking.Phone(sess.CustomerID),
		"trigger":        string(decision.Trigger),
		"confidence":     decision.Confidence,
		"reason":         decision.Reason,
	}); err != nil {
		log.Error("Escalation analytics append failed", "error", err)
	}

	log.Info("Conversation escalated to human agent")
	return nil
}

// ResumeAIControl reverses the handoff: WAITING_AGENT → ACTIVE, customer
// notice, analytics.
func (h *Handoff) ResumeAIControl(ctx context.Context, conversationID string) error {
	conv, err := h.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	sess, err := h.sessions.Get(ctx, conv.CustomerPhone, conv.AgentID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := h.sessions.UpdateState(sess, models.SessionStateActive); err != nil {
		return fmt.Errorf("cannot resume AI control: %w", err)
	}
	if err := h.sessions.Update(ctx, sess); err != nil {
		return fmt.Errorf("failed to persist resumed session: %w", err)
	}

	if err := h.conversations.SetStatus(ctx, conv.ID, models.ConversationStatusActive, map[string]any{
		"escalated": false,
		"resumedAt": h.now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("failed to mark conversation active: %w", err)
	}

	notice := response.ResumeMessage(sess.LanguagePreference, customerName(sess))
	if err := h.customer.SendText(ctx, sess.CustomerID, notice); err != nil {
		h.logger.Error("Customer resume notice failed",
			"conversation_id", conv.ID, "error", err)
	}

	if _, err := h.events.Append(ctx, conv.AgentID, models.EventAIControlResumed, map[string]any{
		"conversationId": conv.ID,
		"sessionId":      sess.SessionID,
	}); err != nil {
		h.logger.Error("Resume analytics append failed", "error", err)
	}

	h.logger.Info("AI control resumed", "conversation_id", conv.ID)
	return nil
}

func customerName(sess *models.Session) string {
	if sess.ExtractedInfo != nil {
		return sess.ExtractedInfo.CustomerName
	}
	return ""
}
