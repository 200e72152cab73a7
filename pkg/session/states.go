package session

import (
	"errors"
	"fmt"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// ErrInvalidTransition is returned for a state-machine move outside the legal
// set. It is never retried and never crashes a worker.
var ErrInvalidTransition = errors.New("invalid session state transition")

// legalTransitions lists the only legal moves. Self-transitions are always
// legal and are not listed. CLOSED is terminal.
var legalTransitions = map[models.SessionState][]models.SessionState{
	models.SessionStateNew:          {models.SessionStateActive},
	models.SessionStateActive:       {models.SessionStateIdle, models.SessionStateWaitingAgent, models.SessionStateClosed},
	models.SessionStateIdle:         {models.SessionStateActive, models.SessionStateClosed},
	models.SessionStateWaitingAgent: {models.SessionStateActive, models.SessionStateClosed},
	models.SessionStateClosed:       {},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to models.SessionState) bool {
	if from == to {
		return true
	}
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a state change in memory. The change is
// persisted by the next Update call.
func Transition(s *models.Session, to models.SessionState) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
	}
	s.State = to
	return nil
}
