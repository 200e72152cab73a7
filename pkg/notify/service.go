// Package notify fans out agent-facing notifications across in-app, WhatsApp,
// email, and SMS channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/masking"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// TextSender delivers a plain text WhatsApp message.
type TextSender interface {
	SendText(ctx context.Context, to, text string) error
}

// EventAppender records the authoritative in-app event.
type EventAppender interface {
	Append(ctx context.Context, agentID, eventType string, data map[string]any) (*models.AnalyticsEvent, error)
}

// Input describes one escalation or lead notification.
type Input struct {
	Agent          *models.AgentProfile
	ConversationID string
	CustomerPhone  string
	CustomerName   string
	Trigger        models.EscalationTrigger
	Urgency        models.EscalationUrgency
	Summary        string
	LeadScore      int
	LeadQuality    models.LeadQuality
}

// Service orchestrates the fan-out. The in-app event is written first and is
// authoritative; the outbound channels then run in parallel, each
// independently fault-tolerant: a channel failure is logged, never rethrown.
type Service struct {
	whatsapp TextSender
	email    Emailer
	sms      SMSer
	events   EventAppender
	cfg      *config.NotifyConfig
	logger   *slog.Logger
}

// NewService creates a notification service. whatsapp, email, and sms may be
// nil; nil channels are skipped.
func NewService(whatsapp TextSender, email Emailer, sms SMSer, events EventAppender, cfg *config.NotifyConfig) *Service {
	return &Service{
		whatsapp: whatsapp,
		email:    email,
		sms:      sms,
		events:   events,
		cfg:      cfg,
		logger:   slog.Default().With("component", "notify-service"),
	}
}

// NotifyEscalation alerts a human agent about a handoff.
func (s *Service) NotifyEscalation(ctx context.Context, in Input) error {
	// In-app first: this row is the source of truth for the agent portal.
	_, err := s.events.Append(ctx, in.Agent.ID, models.EventEscalationNotification, map[string]any{
		"conversationId": in.ConversationID,
		"customerPhone":  in.CustomerPhone,
		"trigger":        string(in.Trigger),
		"urgency":        string(in.Urgency),
		"summary":        in.Summary,
	})
	if err != nil {
		return fmt.Errorf("in-app escalation notification failed: %w", err)
	}

	s.fanOut(ctx, in,
		fmt.Sprintf("Customer %s needs a human agent (%s). Summary:\n%s",
			masking.Phone(in.CustomerPhone), in.Trigger, in.Summary),
		escalationEmail(in))
	return nil
}

// NotifyHotLead alerts a human agent that a lead turned hot.
func (s *Service) NotifyHotLead(ctx context.Context, in Input) error {
	_, err := s.events.Append(ctx, in.Agent.ID, models.EventHotLeadNotification, map[string]any{
		"conversationId": in.ConversationID,
		"customerPhone":  in.CustomerPhone,
		"leadScore":      in.LeadScore,
	})
	if err != nil {
		return fmt.Errorf("in-app hot-lead notification failed: %w", err)
	}

	s.fanOut(ctx, in,
		fmt.Sprintf("Hot lead: %s scored %d. Reach out now.",
			masking.Phone(in.CustomerPhone), in.LeadScore),
		hotLeadEmail(in))
	return nil
}

// fanOut runs the outbound channels in parallel. Each goroutine swallows its
// own error after logging so one channel never blocks another.
func (s *Service) fanOut(ctx context.Context, in Input, whatsappText string, email EmailMessage) {
	g, ctx := errgroup.WithContext(ctx)

	if s.whatsapp != nil && in.Agent.WhatsAppNumber != "" {
		g.Go(func() error {
			if err := s.whatsapp.SendText(ctx, in.Agent.WhatsAppNumber, whatsappText); err != nil {
				s.logger.Error("WhatsApp agent notification failed",
					"agent_id", in.Agent.ID, "error", err)
			}
			return nil
		})
	}

	if s.email != nil && s.cfg.EmailEnabled && in.Agent.Email != "" {
		g.Go(func() error {
			if err := s.email.Send(ctx, in.Agent.Email, email); err != nil {
				s.logger.Error("Email agent notification failed",
					"agent_id", in.Agent.ID, "error", err)
			}
			return nil
		})
	}

	if s.sms != nil && s.cfg.SMSEnabled && in.Agent.SMSEnabled && in.Agent.SMSNumber != "" {
		g.Go(func() error {
			if err := s.sms.Send(ctx, in.Agent.SMSNumber, whatsappText); err != nil {
				s.logger.Error("SMS agent notification failed",
					"agent_id", in.Agent.ID, "error", err)
			}
			if _, err := s.events.Append(ctx, in.Agent.ID, models.EventSMSNotificationAttempt, map[string]any{
				"conversationId": in.ConversationID,
			}); err != nil {
				s.logger.Error("SMS attempt event append failed", "error", err)
			}
			return nil
		})
	}

	_ = g.Wait()
}
