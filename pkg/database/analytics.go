package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// AnalyticsRepo appends immutable analytics events. The same rows serve
// in-app notifications and reporting.
type AnalyticsRepo struct {
	db *sqlx.DB
}

// NewAnalyticsRepo creates an analytics repository.
func NewAnalyticsRepo(client *Client) *AnalyticsRepo {
	return &AnalyticsRepo{db: client.DB()}
}

// Append writes one event. The returned event carries the generated ID and
// timestamp.
func (r *AnalyticsRepo) Append(ctx context.Context, agentID, eventType string, data map[string]any) (*models.AnalyticsEvent, error) {
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event data: %w", err)
	}

	event := &models.AnalyticsEvent{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		EventType: eventType,
		EventData: data,
		CreatedAt: time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analytics_events (id, agent_id, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.AgentID, event.EventType, payload, event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("analytics append failed: %w", err)
	}
	return event, nil
}
