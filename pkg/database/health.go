package database

import (
	"context"
	"fmt"
	"time"
)

// Health pings the database with a short deadline and reports basic pool
// statistics.
func Health(ctx context.Context, client *Client) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.DB().PingContext(ctx); err != nil {
		return map[string]any{"status": "unreachable"}, fmt.Errorf("database ping failed: %w", err)
	}

	stats := client.DB().Stats()
	return map[string]any{
		"status":           "healthy",
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	}, nil
}
