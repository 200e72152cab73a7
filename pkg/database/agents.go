package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// AgentRepo reads human agent profiles for notification fan-out.
type AgentRepo struct {
	db *sqlx.DB
}

// NewAgentRepo creates an agent repository.
func NewAgentRepo(client *Client) *AgentRepo {
	return &AgentRepo{db: client.DB()}
}

// Get loads one agent profile.
func (r *AgentRepo) Get(ctx context.Context, id string) (*models.AgentProfile, error) {
	var profile models.AgentProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT id, name, whatsapp_number, email, sms_number, sms_enabled, company_name
		FROM agents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("agent read failed: %w", err)
	}
	return &profile, nil
}
