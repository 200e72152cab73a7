// Package dispatcher runs the per-message processing pipeline as the queue's
// job processor.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/intent"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/leads"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/llm"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/masking"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/queue"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/rag"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/response"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/session"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/vectorstore"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/whatsapp"
)

// Sessions is the session-store capability the pipeline needs.
type Sessions interface {
	Get(ctx context.Context, customerID, agentID string) (*models.Session, error)
	Update(ctx context.Context, sess *models.Session) error
	AddMessage(sess *models.Session, entry models.MessageEntry)
	UpdateState(sess *models.Session, to models.SessionState) error
	UpdateIntent(sess *models.Session, i models.Intent, topic string)
}

// Classifier labels one turn.
type Classifier interface {
	Classify(ctx context.Context, text string, history []models.MessageEntry) *models.Classification
}

// Retriever augments the system prompt with retrieved context.
type Retriever interface {
	AugmentPrompt(ctx context.Context, systemPrompt, query, agentID string, opts rag.Options) (string, *rag.Context, error)
}

// EscalationDetector evaluates the trigger chain.
type EscalationDetector interface {
	Detect(ctx context.Context, message string, history []models.MessageEntry) *models.EscalationDecision
}

// EscalationHandoff orchestrates the transfer to a human.
type EscalationHandoff interface {
	Escalate(ctx context.Context, sess *models.Session, conv *models.Conversation, decision *models.EscalationDecision) error
}

// Conversations is the relational-mirror capability.
type Conversations interface {
	GetOrCreate(ctx context.Context, agentID, customerPhone string) (*models.Conversation, error)
	UpdateLeadScore(ctx context.Context, id string, score models.LeadScore, previousQuality models.LeadQuality, notification map[string]any) error
}

// LeadRouter gates quality-transition notifications.
type LeadRouter interface {
	Route(ctx context.Context, conv *models.Conversation, score models.LeadScore) map[string]any
}

// AgentLookup resolves the owning agent for prompt persona and templates.
type AgentLookup interface {
	Get(ctx context.Context, id string) (*models.AgentProfile, error)
}

// Outbound delivers replies to the customer.
type Outbound interface {
	SendText(ctx context.Context, to, text string) error
	SendRich(ctx context.Context, to, messageID string, rich *response.Rich) error
}

// Result summarizes one processing for logs and tests.
type Result struct {
	Processed         bool
	ResponseGenerated bool
	Escalated         bool
}

// Processor is the queue worker's job handler. One Process call is one
// logical processing of one inbound message.
type Processor struct {
	sessions      Sessions
	classifier    Classifier
	retriever     Retriever
	detector      EscalationDetector
	handoff       EscalationHandoff
	conversations Conversations
	router        LeadRouter
	agents        AgentLookup
	outbound      Outbound
	llm           llm.Client
	logger        *slog.Logger
}

// NewProcessor wires the pipeline.
func NewProcessor(
	sessions Sessions,
	classifier Classifier,
	retriever Retriever,
	detector EscalationDetector,
	handoff EscalationHandoff,
	conversations Conversations,
	router LeadRouter,
	agents AgentLookup,
	outbound Outbound,
	client llm.Client,
) *Processor {
	return &Processor{
		sessions:      sessions,
		classifier:    classifier,
		retriever:     retriever,
		detector:      detector,
		handoff:       handoff,
		conversations: conversations,
		router:        router,
		agents:        agents,
		outbound:      outbound,
		llm:           client,
		logger:        slog.Default().With("component", "dispatcher"),
	}
}

// Process implements queue.Processor.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	_, err := p.ProcessMessage(ctx, &job.Message)
	return err
}

// ProcessMessage runs the full pipeline for one inbound message.
func (p *Processor) ProcessMessage(ctx context.Context, msg *models.ParsedMessage) (*Result, error) {
	log := p.logger.With("message_id", msg.MessageID, "customer", masking.Phone(msg.From))

	// Session and conversation loads are primary: without them nothing can
	// proceed, and store errors are transient.
	sess, err := p.sessions.Get(ctx, msg.From, msg.AgentID)
	if err != nil {
		return nil, queue.Retryable(fmt.Errorf("session load failed: %w", err))
	}
	conv, err := p.conversations.GetOrCreate(ctx, msg.AgentID, msg.From)
	if err != nil {
		return nil, queue.Retryable(fmt.Errorf("conversation load failed: %w", err))
	}

	// Candidate next state, applied in memory and persisted with the rest.
	switch sess.State {
	case models.SessionStateNew, models.SessionStateIdle:
		if err := p.sessions.UpdateState(sess, models.SessionStateActive); err != nil {
			return nil, err // InvalidTransition is permanent, never retried
		}
	case models.SessionStateClosed:
		// A message for a closed session means the TTL race lost; treat the
		// fresh in-memory session as authoritative.
		log.Warn("Message for closed session, reactivating")
		sess.State = models.SessionStateActive
	}

	if lang := DetectLanguage(msg.Content); lang != "" {
		sess.LanguagePreference = lang
	}

	switch msg.Type {
	case models.MessageTypeText:
		return p.processText(ctx, log, sess, conv, msg)
	case models.MessageTypeInteractive:
		return p.processInteractive(ctx, log, sess, conv, msg)
	default:
		return p.processNonText(ctx, log, sess, msg)
	}
}

// processNonText persists media and location messages without generating a
// reply.
func (p *Processor) processNonText(ctx context.Context, log *slog.Logger, sess *models.Session, msg *models.ParsedMessage) (*Result, error) {
	p.sessions.AddMessage(sess, entryFromMessage(msg))
	if err := p.sessions.Update(ctx, sess); err != nil {
		return nil, queue.Retryable(fmt.Errorf("session persist failed: %w", err))
	}
	log.Info("Stored non-text message", "type", msg.Type)
	return &Result{Processed: true}, nil
}

// processInteractive routes button replies. talk_to_agent short-circuits into
// the handoff; the other payloads re-enter the text pipeline under their
// intent.
func (p *Processor) processInteractive(ctx context.Context, log *slog.Logger, sess *models.Session, conv *models.Conversation, msg *models.ParsedMessage) (*Result, error) {
	p.sessions.AddMessage(sess, entryFromMessage(msg))

	switch msg.ButtonPayload {
	case response.PayloadTalkToAgent:
		if err := p.sessions.Update(ctx, sess); err != nil {
			return nil, queue.Retryable(fmt.Errorf("session persist failed: %w", err))
		}
		decision := &models.EscalationDecision{
			ShouldEscalate: true,
			Trigger:        models.TriggerExplicitRequest,
			Confidence:     1,
			Reason:         "customer tapped talk-to-agent",
		}
		if err := p.handoff.Escalate(ctx, sess, conv, decision); err != nil {
			return nil, queue.Retryable(err)
		}
		return &Result{Processed: true, Escalated: true}, nil

	case response.PayloadScheduleViewing:
		sess.Scheduling = &models.SchedulingState{}
		p.sessions.UpdateIntent(sess, models.IntentScheduleViewing, "viewing")
	case response.PayloadCalculatePayment:
		p.sessions.UpdateIntent(sess, models.IntentPaymentPlans, "payment")
	case response.PayloadViewMap:
		p.sessions.UpdateIntent(sess, models.IntentLocationInfo, "location")
	default:
		log.Warn("Unknown button payload", "payload", msg.ButtonPayload)
	}

	if err := p.sessions.Update(ctx, sess); err != nil {
		return nil, queue.Retryable(fmt.Errorf("session persist failed: %w", err))
	}
	log.Info("Stored interactive reply", "payload", msg.ButtonPayload)
	return &Result{Processed: true}, nil
}

// processText is the main pipeline: classify → merge → detect escalation →
// retrieve → generate → post-process → persist once → score → send.
func (p *Processor) processText(ctx context.Context, log *slog.Logger, sess *models.Session, conv *models.Conversation, msg *models.ParsedMessage) (*Result, error) {
	classification := p.classifier.Classify(ctx, msg.Content, sess.MessageHistory)
	sess.ExtractedInfo = intent.Merge(sess.ExtractedInfo, classification.Entities)
	p.sessions.UpdateIntent(sess, classification.Intent, topicFor(classification.Intent))
	if classification.Intent == models.IntentScheduleViewing && sess.Scheduling == nil {
		sess.Scheduling = &models.SchedulingState{}
	}
	log.Info("Message classified",
		"intent", classification.Intent, "confidence", classification.Confidence)

	if decision := p.detector.Detect(ctx, msg.Content, sess.MessageHistory); decision.ShouldEscalate {
		p.sessions.AddMessage(sess, entryFromMessage(msg))
		if err := p.sessions.Update(ctx, sess); err != nil {
			return nil, queue.Retryable(fmt.Errorf("session persist failed: %w", err))
		}
		if err := p.handoff.Escalate(ctx, sess, conv, decision); err != nil {
			return nil, queue.Retryable(err)
		}
		p.scoreAndPersist(ctx, log, sess, conv)
		return &Result{Processed: true, Escalated: true}, nil
	}

	agentName, companyName := p.agentNames(ctx, msg.AgentID)

	var (
		properties []models.PropertyDocument
		llmText    string
		generated  bool
	)

	if isTemplateIntent(classification.Intent) {
		// Template replies never need retrieval or generation.
		generated = true
	} else {
		systemPrompt := buildSystemPrompt(sess, agentName, companyName)
		augmented, retrieved, err := p.retriever.AugmentPrompt(ctx, systemPrompt, msg.Content, msg.AgentID, rag.Options{
			Filters: intent.ExtractSearchFilters(sess.ExtractedInfo),
		})
		if err != nil {
			// Vector infrastructure fails closed: empty context, keep going.
			log.Error("Context retrieval failed, proceeding without context", "error", err)
			augmented = systemPrompt
		}
		if retrieved != nil {
			properties = matchesToProperties(retrieved.Properties)
		}

		result, genErr := p.llm.Generate(ctx, llm.Request{
			System:   augmented,
			Messages: historyToLLM(sess.MessageHistory, msg.Content),
		})
		if genErr != nil {
			return p.handleGenerationFailure(ctx, log, sess, msg, genErr)
		}
		llmText = result.Text
		generated = true
	}

	rich := response.Process(response.Input{
		Text:          llmText,
		Intent:        classification.Intent,
		Properties:    properties,
		CustomerName:  customerName(sess, msg),
		AgentName:     displayName(agentName, companyName),
		ExtractedInfo: sess.ExtractedInfo,
		Language:      sess.LanguagePreference,
	})

	// Both turns land in memory first; the session is persisted exactly once.
	p.sessions.AddMessage(sess, entryFromMessage(msg))
	p.sessions.AddMessage(sess, models.MessageEntry{
		Role:      models.RoleAssistant,
		Content:   rich.Text,
		Type:      models.MessageTypeText,
		Timestamp: time.Now(),
	})

	if rich.RequiresEscalation {
		// The handoff owns the customer-facing notice from here.
		if err := p.sessions.Update(ctx, sess); err != nil {
			return nil, queue.Retryable(fmt.Errorf("session persist failed: %w", err))
		}
		if err := p.handoff.Escalate(ctx, sess, conv, &models.EscalationDecision{
			ShouldEscalate: true,
			Trigger:        triggerForIntent(classification.Intent),
			Confidence:     classification.Confidence,
			Reason:         "post-processor flagged escalation",
		}); err != nil {
			return nil, queue.Retryable(err)
		}
		p.scoreAndPersist(ctx, log, sess, conv)
		return &Result{Processed: true, ResponseGenerated: generated, Escalated: true}, nil
	}

	persistFailed := false
	if err := p.sessions.Update(ctx, sess); err != nil {
		// Persistence is primary, but the customer still gets the reply; the
		// retry will rebuild the session.
		log.Error("Session persist failed, still sending reply", "error", err)
		persistFailed = true
	}

	p.scoreAndPersist(ctx, log, sess, conv)

	if err := p.outbound.SendRich(ctx, msg.From, msg.MessageID, rich); err != nil {
		if errors.Is(err, whatsapp.ErrRateLimited) {
			return nil, queue.Retryable(err)
		}
		return nil, queue.Retryable(fmt.Errorf("outbound send failed: %w", err))
	}

	if persistFailed {
		return nil, queue.Retryable(errors.New("session persist failed after send"))
	}

	return &Result{
		Processed:         true,
		ResponseGenerated: generated,
		Escalated:         rich.RequiresEscalation,
	}, nil
}

// handleGenerationFailure persists the user message and sends the bilingual
// fallback. The job is NOT retried: the customer already got an answer.
func (p *Processor) handleGenerationFailure(ctx context.Context, log *slog.Logger, sess *models.Session, msg *models.ParsedMessage, genErr error) (*Result, error) {
	log.Error("LLM generation failed, sending fallback", "error", genErr)

	p.sessions.AddMessage(sess, entryFromMessage(msg))
	if err := p.sessions.Update(ctx, sess); err != nil {
		log.Error("Session persist failed after LLM failure", "error", err)
	}

	if err := p.outbound.SendText(ctx, msg.From, response.FallbackMessage(sess.LanguagePreference)); err != nil {
		log.Error("Fallback message send failed", "error", err)
	}
	return &Result{Processed: true, ResponseGenerated: false}, nil
}

// scoreAndPersist computes the lead score, routes transition notifications,
// and writes score + quality + notification metadata in one atomic update.
// Everything here is auxiliary to the reply.
func (p *Processor) scoreAndPersist(ctx context.Context, log *slog.Logger, sess *models.Session, conv *models.Conversation) {
	score := leads.CalculateScore(sess)
	previous := conv.LeadQuality
	notification := p.router.Route(ctx, conv, score)
	if err := p.conversations.UpdateLeadScore(ctx, conv.ID, score, previous, notification); err != nil {
		log.Error("Lead score update failed", "error", err)
		return
	}
	conv.LeadScore = score.Total
	conv.LeadQuality = score.Quality
}

func (p *Processor) agentNames(ctx context.Context, agentID string) (string, string) {
	agent, err := p.agents.Get(ctx, agentID)
	if err != nil {
		p.logger.Warn("Agent lookup failed", "agent_id", agentID, "error", err)
		return "", ""
	}
	return agent.Name, agent.CompanyName
}

func isTemplateIntent(i models.Intent) bool {
	return i == models.IntentGreeting || i == models.IntentGoodbye || i == models.IntentAgentRequest
}

func triggerForIntent(i models.Intent) models.EscalationTrigger {
	if i == models.IntentComplaint {
		return models.TriggerComplaint
	}
	return models.TriggerExplicitRequest
}

func topicFor(i models.Intent) string {
	switch i {
	case models.IntentPriceInquiry, models.IntentPaymentPlans:
		return "pricing"
	case models.IntentLocationInfo:
		return "location"
	case models.IntentScheduleViewing:
		return "viewing"
	case models.IntentPropertyInquiry, models.IntentComparison:
		return "properties"
	default:
		return ""
	}
}

func entryFromMessage(msg *models.ParsedMessage) models.MessageEntry {
	entry := models.MessageEntry{
		Role:      models.RoleUser,
		Content:   msg.Content,
		Media:     msg.Media,
		Location:  msg.Location,
		Type:      msg.Type,
		MessageID: msg.MessageID,
	}
	if ts, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
		entry.Timestamp = ts
	} else {
		entry.Timestamp = time.Now()
	}
	return entry
}

func historyToLLM(history []models.MessageEntry, current string) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		role := llm.RoleUser
		if m.Role == models.RoleAssistant || m.Role == models.RoleAgent {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: current})
}

func customerName(sess *models.Session, msg *models.ParsedMessage) string {
	if sess.ExtractedInfo != nil && sess.ExtractedInfo.CustomerName != "" {
		return sess.ExtractedInfo.CustomerName
	}
	return msg.FromName
}

func displayName(agentName, companyName string) string {
	if companyName != "" {
		return companyName
	}
	return agentName
}

func matchesToProperties(matches []vectorstore.PropertyMatch) []models.PropertyDocument {
	out := make([]models.PropertyDocument, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Property)
	}
	return out
}

// Interface satisfaction checks against the concrete implementations wired in
// main.
var _ Sessions = (*session.Store)(nil)
