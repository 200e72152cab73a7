package escalation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/notify"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/session"
)

type fakeSessions struct {
	sess       *models.Session
	updates    int
	transition []models.SessionState
}

func (f *fakeSessions) Get(context.Context, string, string) (*models.Session, error) {
	return f.sess, nil
}

func (f *fakeSessions) Update(_ context.Context, _ *models.Session) error {
	f.updates++
	return nil
}

func (f *fakeSessions) UpdateState(sess *models.Session, to models.SessionState) error {
	f.transition = append(f.transition, to)
	sess.State = to
	return nil
}

type fakeConversations struct {
	conv     *models.Conversation
	statuses []models.ConversationStatus
	metas    []map[string]any
	err      error
}

func (f *fakeConversations) GetByID(context.Context, string) (*models.Conversation, error) {
	return f.conv, nil
}

func (f *fakeConversations) SetStatus(_ context.Context, _ string, status models.ConversationStatus, meta map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.statuses = append(f.statuses, status)
	f.metas = append(f.metas, meta)
	return nil
}

type fakeEvents struct{ types []string }

func (f *fakeEvents) Append(_ context.Context, _ string, eventType string, _ map[string]any) (*models.AnalyticsEvent, error) {
	f.types = append(f.types, eventType)
	return &models.AnalyticsEvent{}, nil
}

type fakeAgents struct{}

func (fakeAgents) Get(context.Context, string) (*models.AgentProfile, error) {
	return &models.AgentProfile{ID: "agent-1", Name: "Mona", WhatsAppNumber: "+2011"}, nil
}

type fakeNotifier struct{ inputs []notify.Input }

func (f *fakeNotifier) NotifyEscalation(_ context.Context, in notify.Input) error {
	f.inputs = append(f.inputs, in)
	return nil
}

type fakeCustomer struct {
	texts []string
	tos   []string
	err   error
}

func (f *fakeCustomer) SendText(_ context.Context, to, text string) error {
	if f.err != nil {
		return f.err
	}
	f.tos = append(f.tos, to)
	f.texts = append(f.texts, text)
	return nil
}

func activeSession() *models.Session {
	return &models.Session{
		SessionID:  "01HQZ",
		CustomerID: "+201001234567",
		AgentID:    "agent-1",
		State:      models.SessionStateActive,
		MessageHistory: []models.MessageEntry{
			{Role: models.RoleUser, Content: "I want to talk to an agent"},
		},
	}
}

func newTestHandoff(sessions SessionStore, convs *fakeConversations, events *fakeEvents, notifier *fakeNotifier, customer *fakeCustomer) *Handoff {
	return NewHandoff(sessions, convs, events, fakeAgents{}, notifier, customer,
		&scriptedLLM{err: errors.New("summary llm down")})
}

func TestEscalateFullFlow(t *testing.T) {
	sess := activeSession()
	sessions := &fakeSessions{sess: sess}
	convs := &fakeConversations{}
	events := &fakeEvents{}
	notifier := &fakeNotifier{}
	customer := &fakeCustomer{}

	h := newTestHandoff(sessions, convs, events, notifier, customer)
	err := h.Escalate(context.Background(), sess,
		&models.Conversation{ID: "c1", AgentID: "agent-1", CustomerPhone: sess.CustomerID},
		&models.EscalationDecision{ShouldEscalate: true, Trigger: models.TriggerExplicitRequest, Confidence: 0.95})
	require.NoError(t, err)

	// Conversation marked waiting with escalation metadata.
	require.Equal(t, []models.ConversationStatus{models.ConversationStatusWaitingAgent}, convs.statuses)
	assert.Equal(t, true, convs.metas[0]["escalated"])

	// Session transitioned and persisted.
	assert.Equal(t, models.SessionStateWaitingAgent, sess.State)
	assert.Equal(t, 1, sessions.updates)

	// Customer got the bilingual transfer notice.
	require.Len(t, customer.texts, 1)
	assert.Contains(t, customer.texts[0], "تحويلك")
	assert.Contains(t, customer.texts[0], "transferring")

	// Agent fan-out carried the fallback summary and high urgency.
	require.Len(t, notifier.inputs, 1)
	assert.Equal(t, models.UrgencyHigh, notifier.inputs[0].Urgency)
	assert.Contains(t, notifier.inputs[0].Summary, "EXPLICIT_REQUEST")

	assert.Equal(t, []string{models.EventConversationEscalated}, events.types)
}

func TestEscalateConversationWriteIsPrimary(t *testing.T) {
	sess := activeSession()
	convs := &fakeConversations{err: errors.New("db down")}
	h := newTestHandoff(&fakeSessions{sess: sess}, convs, &fakeEvents{}, &fakeNotifier{}, &fakeCustomer{})

	err := h.Escalate(context.Background(), sess, &models.Conversation{ID: "c1"},
		&models.EscalationDecision{Trigger: models.TriggerComplaint})
	assert.Error(t, err)
	assert.Equal(t, models.SessionStateActive, sess.State)
}

func TestEscalateCustomerNoticeFailureIsAuxiliary(t *testing.T) {
	sess := activeSession()
	h := newTestHandoff(&fakeSessions{sess: sess}, &fakeConversations{}, &fakeEvents{},
		&fakeNotifier{}, &fakeCustomer{err: errors.New("gateway down")})

	err := h.Escalate(context.Background(), sess, &models.Conversation{ID: "c1", AgentID: "agent-1"},
		&models.EscalationDecision{Trigger: models.TriggerComplaint})
	assert.NoError(t, err)
}

func TestResumeAIControl(t *testing.T) {
	sess := activeSession()
	sess.State = models.SessionStateWaitingAgent
	sessions := &fakeSessions{sess: sess}
	convs := &fakeConversations{conv: &models.Conversation{
		ID: "c1", AgentID: "agent-1", CustomerPhone: sess.CustomerID,
		Status: models.ConversationStatusWaitingAgent,
	}}
	events := &fakeEvents{}
	customer := &fakeCustomer{}

	h := newTestHandoff(sessions, convs, events, &fakeNotifier{}, customer)
	require.NoError(t, h.ResumeAIControl(context.Background(), "c1"))

	assert.Equal(t, models.SessionStateActive, sess.State)
	assert.Equal(t, []models.ConversationStatus{models.ConversationStatusActive}, convs.statuses)
	require.Len(t, customer.texts, 1)
	assert.Equal(t, []string{models.EventAIControlResumed}, events.types)
}

func TestResumeRejectsClosedSession(t *testing.T) {
	sess := activeSession()
	sess.State = models.SessionStateClosed
	sessions := &realStateSessions{sess: sess}
	convs := &fakeConversations{conv: &models.Conversation{ID: "c1", CustomerPhone: sess.CustomerID}}

	h := newTestHandoff(sessions, convs, &fakeEvents{}, &fakeNotifier{}, &fakeCustomer{})
	err := h.ResumeAIControl(context.Background(), "c1")
	assert.Error(t, err)
}

// realStateSessions enforces the real transition table.
type realStateSessions struct{ sess *models.Session }

func (f *realStateSessions) Get(context.Context, string, string) (*models.Session, error) {
	return f.sess, nil
}

func (f *realStateSessions) Update(context.Context, *models.Session) error { return nil }

func (f *realStateSessions) UpdateState(sess *models.Session, to models.SessionState) error {
	return session.Transition(sess, to)
}
