package leads

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/notify"
)

// EventAppender records lead analytics events.
type EventAppender interface {
	Append(ctx context.Context, agentID, eventType string, data map[string]any) (*models.AnalyticsEvent, error)
}

// AgentNotifier delivers the multi-channel hot-lead alert.
type AgentNotifier interface {
	NotifyHotLead(ctx context.Context, in notify.Input) error
}

// AgentLookup resolves the owning agent profile.
type AgentLookup interface {
	Get(ctx context.Context, id string) (*models.AgentProfile, error)
}

// Router gates lead notifications on quality TRANSITIONS: when the quality
// did not change between two consecutive scorings, nothing is emitted. The
// returned metadata is merged by the caller into the same conversation update
// that stores the score, keeping the write atomic.
type Router struct {
	events   EventAppender
	notifier AgentNotifier
	agents   AgentLookup
	logger   *slog.Logger
	now      func() time.Time
}

// NewRouter creates a notification router.
func NewRouter(events EventAppender, notifier AgentNotifier, agents AgentLookup) *Router {
	return &Router{
		events:   events,
		notifier: notifier,
		agents:   agents,
		logger:   slog.Default().With("component", "lead-router"),
		now:      time.Now,
	}
}

var transitionEvents = map[models.LeadQuality]string{
	models.LeadQualityHot:  models.EventHotLeadIdentified,
	models.LeadQualityWarm: models.EventWarmLeadIdentified,
	models.LeadQualityCold: models.EventColdLeadIdentified,
}

// Route evaluates one scoring against the conversation's previous quality.
// All side effects here are auxiliary: failures are logged and the pipeline
// continues, so scoring never fails because a notification did.
func (r *Router) Route(ctx context.Context, conv *models.Conversation, score models.LeadScore) map[string]any {
	previous := conv.LeadQuality
	if previous == score.Quality {
		return nil // unchanged quality never notifies
	}

	log := r.logger.With("conversation_id", conv.ID,
		"previous", previous, "quality", score.Quality, "score", score.Total)

	if _, err := r.events.Append(ctx, conv.AgentID, transitionEvents[score.Quality], map[string]any{
		"conversationId":  conv.ID,
		"leadScore":       score.Total,
		"previousQuality": string(previous),
	}); err != nil {
		log.Error("Lead transition event append failed", "error", err)
	}

	meta := map[string]any{
		"quality":    string(score.Quality),
		"notifiedAt": r.now().UTC().Format(time.RFC3339),
	}

	switch score.Quality {
	case models.LeadQualityHot:
		// Immediate multi-channel alert.
		agent, err := r.agents.Get(ctx, conv.AgentID)
		if err != nil {
			log.Error("Agent lookup for hot-lead notification failed", "error", err)
			meta["channels"] = []string{"in_app"}
			break
		}
		if err := r.notifier.NotifyHotLead(ctx, notify.Input{
			Agent:          agent,
			ConversationID: conv.ID,
			CustomerPhone:  conv.CustomerPhone,
			LeadScore:      score.Total,
			LeadQuality:    score.Quality,
		}); err != nil {
			log.Error("Hot-lead notification failed", "error", err)
		}
		meta["channels"] = []string{"in_app", "whatsapp", "email"}
	case models.LeadQualityWarm:
		// Picked up by the digest job.
		meta["channels"] = []string{"digest"}
	case models.LeadQualityCold:
		// Feeds the nurture campaign.
		meta["channels"] = []string{"nurture"}
	}

	log.Info("Lead quality transition routed")
	return meta
}
