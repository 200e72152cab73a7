// Package session provides the durable conversational state store backed by
// the shared key/value store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/masking"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

var (
	// ErrNotFound is returned when no session exists for a lookup.
	ErrNotFound = errors.New("session not found")

	// ErrConcurrentModification is returned when an optimistic write loses the
	// race against another writer. Callers retry by reloading.
	ErrConcurrentModification = errors.New("session modified concurrently")
)

const (
	sessionKeyPrefix = "session:"
	indexKeyPrefix   = "session-index:"
)

// Store persists sessions as one JSON blob per customer with a reverse index
// from sessionId, both carrying the session TTL.
//
// Reads never rewrite: only actual mutations extend the TTL. Writes use
// optimistic concurrency on the session version field.
type Store struct {
	rdb    *redis.Client
	cfg    *config.SessionConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a session store.
func NewStore(rdb *redis.Client, cfg *config.SessionConfig) *Store {
	return &Store{
		rdb:    rdb,
		cfg:    cfg,
		logger: slog.Default().With("component", "session-store"),
		now:    time.Now,
	}
}

func sessionKey(customerID string) string { return sessionKeyPrefix + customerID }
func indexKey(sessionID string) string    { return indexKeyPrefix + sessionID }

// Get loads the session for a customer, creating one in NEW (in memory only)
// when absent. The created session is not persisted until the first Update.
func (s *Store) Get(ctx context.Context, customerID, agentID string) (*models.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(customerID)).Bytes()
	if err == nil {
		var sess models.Session
		if jsonErr := json.Unmarshal(data, &sess); jsonErr != nil {
			return nil, fmt.Errorf("failed to decode session for %s: %w", masking.Phone(customerID), jsonErr)
		}
		return &sess, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	now := s.now()
	sess := &models.Session{
		SessionID:      ulid.Make().String(),
		CustomerID:     customerID,
		AgentID:        agentID,
		State:          models.SessionStateNew,
		StartTime:      now,
		LastActivity:   now,
		MessageHistory: []models.MessageEntry{},
	}
	s.logger.Info("Session created", "session_id", sess.SessionID, "customer", masking.Phone(customerID))
	return sess, nil
}

// GetBySessionID resolves a session through the reverse index in O(1).
func (s *Store) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	customerID, err := s.rdb.Get(ctx, indexKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session index: %w", err)
	}

	data, err := s.rdb.Get(ctx, sessionKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// Update persists a mutated session: history is truncated to the configured
// bound, the version is bumped, and the blob plus reverse index are written
// in one transaction with a refreshed TTL. A concurrent writer is detected by
// the version check and surfaces as ErrConcurrentModification.
func (s *Store) Update(ctx context.Context, sess *models.Session) error {
	if over := len(sess.MessageHistory) - s.cfg.MaxHistory; over > 0 {
		sess.MessageHistory = sess.MessageHistory[over:]
	}

	key := sessionKey(sess.CustomerID)
	baseVersion := sess.Version

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var stored models.Session
			if jsonErr := json.Unmarshal(current, &stored); jsonErr == nil && stored.Version != baseVersion {
				return ErrConcurrentModification
			}
		}

		sess.Version = baseVersion + 1
		payload, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.cfg.Timeout)
			pipe.Set(ctx, indexKey(sess.SessionID), sess.CustomerID, s.cfg.Timeout)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		sess.Version = baseVersion
		return ErrConcurrentModification
	}
	if err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			sess.Version = baseVersion
			return err
		}
		return fmt.Errorf("failed to persist session %s: %w", sess.SessionID, err)
	}
	return nil
}

// AddMessage appends to the in-memory history and advances lastActivity.
// Nothing is persisted until Update; trimming also happens there, so the
// bound holds after any persisted state.
func (s *Store) AddMessage(sess *models.Session, entry models.MessageEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	sess.MessageHistory = append(sess.MessageHistory, entry)
	if entry.Timestamp.After(sess.LastActivity) {
		sess.LastActivity = entry.Timestamp
	}
}

// UpdateState validates and applies a lifecycle transition in memory.
func (s *Store) UpdateState(sess *models.Session, to models.SessionState) error {
	return Transition(sess, to)
}

// UpdateIntent records the current intent and topic in memory.
func (s *Store) UpdateIntent(sess *models.Session, intent models.Intent, topic string) {
	sess.CurrentIntent = intent
	if topic != "" {
		sess.CurrentTopic = topic
	}
}

// Close terminates a session by sessionId: the transition to CLOSED is
// validated, then blob and index are removed. CLOSED is terminal.
func (s *Store) Close(ctx context.Context, sessionID string) error {
	sess, err := s.GetBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := Transition(sess, models.SessionStateClosed); err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sess.CustomerID))
		pipe.Del(ctx, indexKey(sessionID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to close session %s: %w", sessionID, err)
	}
	s.logger.Info("Session closed", "session_id", sessionID)
	return nil
}

// CheckIdleSessions scans active sessions with a non-blocking cursor and
// transitions those idle past the session timeout to IDLE. Returns how many
// sessions were idled.
func (s *Store) CheckIdleSessions(ctx context.Context) (int, error) {
	var (
		cursor uint64
		idled  int
	)
	threshold := s.now().Add(-s.cfg.Timeout)

	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return idled, fmt.Errorf("session scan failed: %w", err)
		}

		for _, key := range keys {
			data, err := s.rdb.Get(ctx, key).Bytes()
			if err != nil {
				continue // expired between scan and read
			}
			var sess models.Session
			if err := json.Unmarshal(data, &sess); err != nil {
				s.logger.Warn("Skipping undecodable session blob", "key", key, "error", err)
				continue
			}
			if sess.State != models.SessionStateActive || !sess.LastActivity.Before(threshold) {
				continue
			}
			if err := Transition(&sess, models.SessionStateIdle); err != nil {
				continue
			}
			if err := s.Update(ctx, &sess); err != nil {
				if errors.Is(err, ErrConcurrentModification) {
					continue // a worker touched it; it is not idle anymore
				}
				s.logger.Error("Failed to idle session", "session_id", sess.SessionID, "error", err)
				continue
			}
			idled++
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return idled, nil
}
