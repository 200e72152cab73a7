// Package sweeper runs the periodic idle sweep over active sessions.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
)

// SessionSweeper is the session-store capability the sweeper drives.
type SessionSweeper interface {
	CheckIdleSessions(ctx context.Context) (int, error)
}

// Service periodically transitions stale ACTIVE sessions to IDLE. No
// customer-facing message is ever emitted here. Safe to run from multiple
// replicas: the sweep is idempotent.
type Service struct {
	cfg      *config.SweeperConfig
	sessions SessionSweeper

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates the idle sweeper.
func NewService(cfg *config.SweeperConfig, sessions SessionSweeper) *Service {
	return &Service{cfg: cfg, sessions: sessions}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Idle sweeper started", "interval", s.cfg.Interval)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Idle sweeper stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	count, err := s.sessions.CheckIdleSessions(ctx)
	if err != nil {
		slog.Error("Idle sweep failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Idle sweep transitioned sessions", "count", count)
	}
}
