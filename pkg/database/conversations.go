package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("entity not found")

// ConversationRepo persists the relational mirror of conversations.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo creates a conversation repository.
func NewConversationRepo(client *Client) *ConversationRepo {
	return &ConversationRepo{db: client.DB()}
}

type conversationRow struct {
	ID            string    `db:"id"`
	AgentID       string    `db:"agent_id"`
	CustomerPhone string    `db:"customer_phone"`
	Status        string    `db:"status"`
	StartedAt     time.Time `db:"started_at"`
	LastMessageAt time.Time `db:"last_message_at"`
	LeadScore     int       `db:"lead_score"`
	LeadQuality   string    `db:"lead_quality"`
	Metadata      []byte    `db:"metadata"`
}

func (r *conversationRow) toModel() (*models.Conversation, error) {
	c := &models.Conversation{
		ID:            r.ID,
		AgentID:       r.AgentID,
		CustomerPhone: r.CustomerPhone,
		Status:        models.ConversationStatus(r.Status),
		StartedAt:     r.StartedAt,
		LastMessageAt: r.LastMessageAt,
		LeadScore:     r.LeadScore,
		LeadQuality:   models.LeadQuality(r.LeadQuality),
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("bad metadata for conversation %s: %w", r.ID, err)
		}
	}
	return c, nil
}

// GetOrCreate returns the conversation for an agent/customer pair, creating
// an ACTIVE row on first contact.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, agentID, customerPhone string) (*models.Conversation, error) {
	conv, err := r.GetByCustomer(ctx, agentID, customerPhone)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	row := conversationRow{
		ID:            uuid.NewString(),
		AgentID:       agentID,
		CustomerPhone: customerPhone,
		Status:        string(models.ConversationStatusActive),
		StartedAt:     now,
		LastMessageAt: now,
		LeadQuality:   string(models.LeadQualityCold),
		Metadata:      []byte(`{}`),
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, agent_id, customer_phone, status, started_at, last_message_at, lead_score, lead_quality, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
		ON CONFLICT (agent_id, customer_phone) DO NOTHING`,
		row.ID, row.AgentID, row.CustomerPhone, row.Status, row.StartedAt, row.LastMessageAt, row.LeadQuality, row.Metadata)
	if err != nil {
		return nil, fmt.Errorf("conversation insert failed: %w", err)
	}

	// Re-read: a concurrent worker may have won the insert race.
	return r.GetByCustomer(ctx, agentID, customerPhone)
}

// GetByCustomer loads a conversation by its agent/customer pair.
func (r *ConversationRepo) GetByCustomer(ctx context.Context, agentID, customerPhone string) (*models.Conversation, error) {
	var row conversationRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, agent_id, customer_phone, status, started_at, last_message_at, lead_score, lead_quality, metadata
		FROM conversations WHERE agent_id = $1 AND customer_phone = $2`,
		agentID, customerPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation read failed: %w", err)
	}
	return row.toModel()
}

// GetByID loads a conversation by primary key.
func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var row conversationRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, agent_id, customer_phone, status, started_at, last_message_at, lead_score, lead_quality, metadata
		FROM conversations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation read failed: %w", err)
	}
	return row.toModel()
}

// SetStatus updates the lifecycle status and merges metadata keys.
func (r *ConversationRepo) SetStatus(ctx context.Context, id string, status models.ConversationStatus, metadata map[string]any) error {
	meta := metadata
	if meta == nil {
		meta = map[string]any{}
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET status = $2, last_message_at = now(), metadata = metadata || $3::jsonb
		WHERE id = $1`,
		id, string(status), payload)
	if err != nil {
		return fmt.Errorf("conversation status update failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLeadScore writes score, quality, factors, and optional notification
// metadata in ONE atomic update. Splitting this write loses notifications
// under concurrent scorings. previousQuality is the quality BEFORE this
// scoring and is stored in metadata; the router gates transitions on the
// lead_quality column, not on this value.
func (r *ConversationRepo) UpdateLeadScore(ctx context.Context, id string, score models.LeadScore, previousQuality models.LeadQuality, notification map[string]any) error {
	meta := map[string]any{
		"leadScoreFactors": score.Factors,
		"previousQuality":  previousQuality,
	}
	if notification != nil {
		meta["lastNotification"] = notification
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode lead metadata: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET lead_score = $2, lead_quality = $3, last_message_at = now(),
		    metadata = metadata || $4::jsonb
		WHERE id = $1`,
		id, score.Total, string(score.Quality), payload)
	if err != nil {
		return fmt.Errorf("lead score update failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch refreshes last_message_at.
func (r *ConversationRepo) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("conversation touch failed: %w", err)
	}
	return nil
}
