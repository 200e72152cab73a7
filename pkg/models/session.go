package models

import "time"

// SessionState is the lifecycle state of a conversational session.
type SessionState string

// Session lifecycle states. CLOSED is terminal.
const (
	SessionStateNew          SessionState = "NEW"
	SessionStateActive       SessionState = "ACTIVE"
	SessionStateIdle         SessionState = "IDLE"
	SessionStateWaitingAgent SessionState = "WAITING_AGENT"
	SessionStateClosed       SessionState = "CLOSED"
)

// SchedulingState is the optional viewing-scheduling sub-state carried by a
// session while a SCHEDULE_VIEWING flow is in progress.
type SchedulingState struct {
	PropertyID string     `json:"propertyId,omitempty"`
	Slot       *time.Time `json:"slot,omitempty"`
	Confirmed  bool       `json:"confirmed"`
}

// Session is the per-customer conversational state container and the unit of
// concurrency control. It is persisted as a single JSON blob keyed by the
// customer's phone, with a reverse index from SessionID.
type Session struct {
	SessionID  string `json:"sessionId"` // opaque ULID
	CustomerID string `json:"customerId"`
	AgentID    string `json:"agentId"`

	State     SessionState `json:"state"`
	StartTime time.Time    `json:"startTime"`

	MessageHistory     []MessageEntry   `json:"messageHistory"`
	ExtractedInfo      *ExtractedInfo   `json:"extractedInfo,omitempty"`
	CurrentIntent      Intent           `json:"currentIntent,omitempty"`
	CurrentTopic       string           `json:"currentTopic,omitempty"`
	LastActivity       time.Time        `json:"lastActivity"`
	LanguagePreference string           `json:"languagePreference,omitempty"` // ar | en | mixed
	Scheduling         *SchedulingState `json:"scheduling,omitempty"`

	// Version supports optimistic concurrency: writers bump it and the store
	// rejects a write whose base version no longer matches.
	Version int64 `json:"version"`
}

// UserMessages returns the user-authored entries, oldest first.
func (s *Session) UserMessages() []MessageEntry {
	out := make([]MessageEntry, 0, len(s.MessageHistory))
	for _, m := range s.MessageHistory {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// LastMessages returns up to n trailing history entries.
func (s *Session) LastMessages(n int) []MessageEntry {
	if n <= 0 || len(s.MessageHistory) == 0 {
		return nil
	}
	if len(s.MessageHistory) <= n {
		return s.MessageHistory
	}
	return s.MessageHistory[len(s.MessageHistory)-n:]
}
