package models

import "time"

// ConversationStatus mirrors the session lifecycle in the relational store.
type ConversationStatus string

// Conversation statuses.
const (
	ConversationStatusActive       ConversationStatus = "ACTIVE"
	ConversationStatusIdle         ConversationStatus = "IDLE"
	ConversationStatusWaitingAgent ConversationStatus = "WAITING_AGENT"
	ConversationStatusClosed       ConversationStatus = "CLOSED"
)

// Conversation is the relational mirror of a customer conversation. Metadata
// is an arbitrary JSON object carrying escalation flags, close reasons, the
// last notification record, the previous lead quality, and score factors.
type Conversation struct {
	ID            string             `json:"id" db:"id"`
	AgentID       string             `json:"agentId" db:"agent_id"`
	CustomerPhone string             `json:"customerPhone" db:"customer_phone"`
	Status        ConversationStatus `json:"status" db:"status"`
	StartedAt     time.Time          `json:"startedAt" db:"started_at"`
	LastMessageAt time.Time          `json:"lastMessageAt" db:"last_message_at"`
	LeadScore     int                `json:"leadScore" db:"lead_score"`
	LeadQuality   LeadQuality        `json:"leadQuality" db:"lead_quality"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

// Analytics event types. These strings are stable: they feed both in-app
// notifications and reporting queries.
const (
	EventConversationEscalated  = "conversation_escalated"
	EventAIControlResumed       = "ai_control_resumed"
	EventHotLeadIdentified      = "hot_lead_identified"
	EventWarmLeadIdentified     = "warm_lead_identified"
	EventColdLeadIdentified     = "cold_lead_identified"
	EventHotLeadNotification    = "hot_lead_notification"
	EventEscalationNotification = "escalation_notification"
	EventSMSNotificationAttempt = "sms_notification_attempted"
)

// AnalyticsEvent is an immutable append-only record.
type AnalyticsEvent struct {
	ID        string         `json:"id" db:"id"`
	AgentID   string         `json:"agentId" db:"agent_id"`
	EventType string         `json:"eventType" db:"event_type"`
	EventData map[string]any `json:"eventData,omitempty"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

// AgentProfile carries the notification endpoints for a human agent. Channels
// with empty values are skipped by the fan-out.
type AgentProfile struct {
	ID             string `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	WhatsAppNumber string `json:"whatsappNumber,omitempty" db:"whatsapp_number"`
	Email          string `json:"email,omitempty" db:"email"`
	SMSNumber      string `json:"smsNumber,omitempty" db:"sms_number"`
	SMSEnabled     bool   `json:"smsEnabled" db:"sms_enabled"`
	CompanyName    string `json:"companyName,omitempty" db:"company_name"`
}
