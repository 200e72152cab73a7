package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/llm"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/queue"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/rag"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/response"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/session"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/vectorstore"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/whatsapp"
)

type fakeSessions struct {
	sess       *models.Session
	updates    int
	updateErr  error
	lastUpdate *models.Session
}

func (f *fakeSessions) Get(context.Context, string, string) (*models.Session, error) {
	return f.sess, nil
}

func (f *fakeSessions) Update(_ context.Context, sess *models.Session) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	f.lastUpdate = sess
	return nil
}

func (f *fakeSessions) AddMessage(sess *models.Session, entry models.MessageEntry) {
	sess.MessageHistory = append(sess.MessageHistory, entry)
}

func (f *fakeSessions) UpdateState(sess *models.Session, to models.SessionState) error {
	return session.Transition(sess, to)
}

func (f *fakeSessions) UpdateIntent(sess *models.Session, i models.Intent, topic string) {
	sess.CurrentIntent = i
	sess.CurrentTopic = topic
}

type fakeClassifier struct{ result *models.Classification }

func (f *fakeClassifier) Classify(context.Context, string, []models.MessageEntry) *models.Classification {
	return f.result
}

type fakeRetriever struct {
	calls      int
	properties []vectorstore.PropertyMatch
	err        error
}

func (f *fakeRetriever) AugmentPrompt(_ context.Context, systemPrompt, _, _ string, _ rag.Options) (string, *rag.Context, error) {
	f.calls++
	if f.err != nil {
		return systemPrompt, nil, f.err
	}
	return systemPrompt + "\ncontext", &rag.Context{Properties: f.properties}, nil
}

type fakeDetector struct{ decision *models.EscalationDecision }

func (f *fakeDetector) Detect(context.Context, string, []models.MessageEntry) *models.EscalationDecision {
	if f.decision == nil {
		return &models.EscalationDecision{ShouldEscalate: false}
	}
	return f.decision
}

type fakeHandoff struct {
	calls     int
	lastTrig  models.EscalationTrigger
	escalated *models.Session
}

func (f *fakeHandoff) Escalate(_ context.Context, sess *models.Session, _ *models.Conversation, decision *models.EscalationDecision) error {
	f.calls++
	f.lastTrig = decision.Trigger
	f.escalated = sess
	sess.State = models.SessionStateWaitingAgent
	return nil
}

type fakeConversations struct {
	conv         *models.Conversation
	scoreCalls   int
	lastScore    models.LeadScore
	lastPrevious models.LeadQuality
	lastNotif    map[string]any
}

func (f *fakeConversations) GetOrCreate(context.Context, string, string) (*models.Conversation, error) {
	return f.conv, nil
}

func (f *fakeConversations) UpdateLeadScore(_ context.Context, _ string, score models.LeadScore, previousQuality models.LeadQuality, notif map[string]any) error {
	f.scoreCalls++
	f.lastScore = score
	f.lastPrevious = previousQuality
	f.lastNotif = notif
	return nil
}

type fakeRouter struct{ meta map[string]any }

func (f *fakeRouter) Route(context.Context, *models.Conversation, models.LeadScore) map[string]any {
	return f.meta
}

type fakeAgents struct{}

func (fakeAgents) Get(context.Context, string) (*models.AgentProfile, error) {
	return &models.AgentProfile{ID: "agent-1", Name: "Mona", CompanyName: "Nile Homes"}, nil
}

type fakeOutbound struct {
	texts    []string
	riches   []*response.Rich
	sendErr  error
	richErr  error
	lastTo   string
	lastMsgs []string
}

func (f *fakeOutbound) SendText(_ context.Context, to, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, text)
	f.lastTo = to
	return nil
}

func (f *fakeOutbound) SendRich(_ context.Context, to, msgID string, rich *response.Rich) error {
	if f.richErr != nil {
		return f.richErr
	}
	f.riches = append(f.riches, rich)
	f.lastTo = to
	f.lastMsgs = append(f.lastMsgs, msgID)
	return nil
}

type fakeLLM struct {
	text  string
	err   error
	calls int
}

func (f *fakeLLM) Generate(context.Context, llm.Request) (*llm.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Result{Text: f.text}, nil
}

type fixture struct {
	sessions  *fakeSessions
	retriever *fakeRetriever
	handoff   *fakeHandoff
	convs     *fakeConversations
	outbound  *fakeOutbound
	llm       *fakeLLM
	processor *Processor
}

func newFixture(classification *models.Classification, decision *models.EscalationDecision) *fixture {
	f := &fixture{
		sessions: &fakeSessions{sess: &models.Session{
			SessionID:  "01HQ",
			CustomerID: "+201001234567",
			AgentID:    "agent-1",
			State:      models.SessionStateNew,
		}},
		retriever: &fakeRetriever{},
		handoff:   &fakeHandoff{},
		convs: &fakeConversations{conv: &models.Conversation{
			ID: "c1", AgentID: "agent-1", CustomerPhone: "+201001234567",
			LeadQuality: models.LeadQualityCold,
		}},
		outbound: &fakeOutbound{},
		llm:      &fakeLLM{text: "Sure, happy to help."},
	}
	f.processor = NewProcessor(
		f.sessions,
		&fakeClassifier{result: classification},
		f.retriever,
		&fakeDetector{decision: decision},
		f.handoff,
		f.convs,
		&fakeRouter{},
		fakeAgents{},
		f.outbound,
		f.llm,
	)
	return f
}

func textMessage(content string) *models.ParsedMessage {
	return &models.ParsedMessage{
		MessageID: "wamid.test",
		From:      "+201001234567",
		AgentID:   "agent-1",
		Timestamp: "2026-08-01T10:00:00Z",
		Type:      models.MessageTypeText,
		Content:   content,
	}
}

func TestGreetingShortCircuit(t *testing.T) {
	f := newFixture(&models.Classification{
		Intent: models.IntentGreeting, Entities: &models.ExtractedInfo{}, Confidence: 0.95,
	}, nil)

	result, err := f.processor.ProcessMessage(context.Background(), textMessage("مرحبا"))
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.True(t, result.ResponseGenerated)
	assert.False(t, result.Escalated)

	// Fresh customer: session moved NEW → ACTIVE.
	assert.Equal(t, models.SessionStateActive, f.sessions.sess.State)

	// No vector search and no LLM call for a template intent.
	assert.Zero(t, f.retriever.calls)
	assert.Zero(t, f.llm.calls)

	// The reply is the bilingual greeting template.
	require.Len(t, f.outbound.riches, 1)
	assert.Contains(t, f.outbound.riches[0].Text, "مرحباً")

	// Session persisted once with both turns.
	assert.Equal(t, 1, f.sessions.updates)
	assert.Len(t, f.sessions.sess.MessageHistory, 2)
}

func TestBudgetUpdateFlow(t *testing.T) {
	budget := 3000000.0
	f := newFixture(&models.Classification{
		Intent:     models.IntentPriceInquiry,
		Entities:   &models.ExtractedInfo{Budget: &budget},
		Confidence: 0.9,
	}, nil)
	f.sessions.sess.State = models.SessionStateActive
	f.sessions.sess.ExtractedInfo = &models.ExtractedInfo{Location: "New Cairo"}
	f.llm.text = "You can find units around 3000000 EGP in New Cairo."

	result, err := f.processor.ProcessMessage(context.Background(), textMessage("budget 3,000,000 EGP"))
	require.NoError(t, err)
	assert.True(t, result.ResponseGenerated)

	// Cumulative bag keeps the location and gains the budget.
	info := f.sessions.sess.ExtractedInfo
	assert.Equal(t, "New Cairo", info.Location)
	require.NotNil(t, info.Budget)
	assert.Equal(t, 3000000.0, *info.Budget)

	// Lead score sees the budget; the pre-update quality rides along.
	assert.GreaterOrEqual(t, f.convs.lastScore.Factors.BudgetClarity, 40)
	assert.Equal(t, 1, f.convs.scoreCalls)
	assert.Equal(t, models.LeadQualityCold, f.convs.lastPrevious)

	// The reply price is rendered bilingually.
	require.Len(t, f.outbound.riches, 1)
	assert.Contains(t, f.outbound.riches[0].Text, "3,000,000 EGP (٣،٠٠٠،٠٠٠ جنيه)")
}

func TestExplicitEscalationShortCircuits(t *testing.T) {
	f := newFixture(&models.Classification{
		Intent: models.IntentAgentRequest, Entities: &models.ExtractedInfo{}, Confidence: 0.9,
	}, &models.EscalationDecision{
		ShouldEscalate: true,
		Trigger:        models.TriggerExplicitRequest,
		Confidence:     0.95,
	})
	f.sessions.sess.State = models.SessionStateActive

	result, err := f.processor.ProcessMessage(context.Background(), textMessage("I want to talk to an agent"))
	require.NoError(t, err)
	assert.True(t, result.Escalated)

	assert.Equal(t, 1, f.handoff.calls)
	assert.Equal(t, models.TriggerExplicitRequest, f.handoff.lastTrig)
	assert.Equal(t, models.SessionStateWaitingAgent, f.sessions.sess.State)

	// No generation happened; the handoff owns the customer notice.
	assert.Zero(t, f.llm.calls)
	assert.Empty(t, f.outbound.riches)

	// Lead score still lands in the single conversation update.
	assert.Equal(t, 1, f.convs.scoreCalls)
}

func TestLLMFailureSendsFallbackAndDoesNotRetry(t *testing.T) {
	f := newFixture(&models.Classification{
		Intent: models.IntentPropertyInquiry, Entities: &models.ExtractedInfo{}, Confidence: 0.8,
	}, nil)
	f.sessions.sess.State = models.SessionStateActive
	f.sessions.sess.LanguagePreference = "en"
	f.llm.err = errors.New("llm 500")

	result, err := f.processor.ProcessMessage(context.Background(), textMessage("any villas in October?"))
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.False(t, result.ResponseGenerated)

	// The user message is persisted and the bilingual fallback is sent.
	assert.Equal(t, 1, f.sessions.updates)
	assert.Len(t, f.sessions.sess.MessageHistory, 1)
	require.Len(t, f.outbound.texts, 1)
	assert.Contains(t, f.outbound.texts[0], "try again")
}

func TestSelfEscalationCueForcesHandoff(t *testing.T) {
	f := newFixture(&models.Classification{
		Intent: models.IntentGeneralQuestion, Entities: &models.ExtractedInfo{}, Confidence: 0.8,
	}, nil)
	f.sessions.sess.State = models.SessionStateActive
	f.llm.text = "I cannot help with court disputes over inherited deeds."

	result, err := f.processor.ProcessMessage(context.Background(), textMessage("my inheritance case..."))
	require.NoError(t, err)
	assert.True(t, result.Escalated)
	assert.Equal(t, 1, f.handoff.calls)
}

func TestRateLimitedSendIsRetryable(t *testing.T) {
	f := newFixture(&models.Classification{
		Intent: models.IntentPropertyInquiry, Entities: &models.ExtractedInfo{}, Confidence: 0.8,
	}, nil)
	f.sessions.sess.State = models.SessionStateActive
	f.outbound.richErr = whatsapp.ErrRateLimited

	_, err := f.processor.ProcessMessage(context.Background(), textMessage("show me villas"))
	require.Error(t, err)
	assert.True(t, queue.IsRetryable(err))
}

func TestMediaMessagePersistedWithoutReply(t *testing.T) {
	f := newFixture(nil, nil)
	f.sessions.sess.State = models.SessionStateActive

	msg := &models.ParsedMessage{
		MessageID: "wamid.img",
		From:      "+201001234567",
		AgentID:   "agent-1",
		Type:      models.MessageTypeImage,
		Media:     &models.MediaRef{MediaID: "m1", MimeType: "image/jpeg"},
	}
	result, err := f.processor.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.False(t, result.ResponseGenerated)

	assert.Len(t, f.sessions.sess.MessageHistory, 1)
	assert.Empty(t, f.outbound.riches)
	assert.Empty(t, f.outbound.texts)
}

func TestTalkToAgentButtonEscalates(t *testing.T) {
	f := newFixture(nil, nil)
	f.sessions.sess.State = models.SessionStateActive

	msg := &models.ParsedMessage{
		MessageID:     "wamid.btn",
		From:          "+201001234567",
		AgentID:       "agent-1",
		Type:          models.MessageTypeInteractive,
		ButtonPayload: response.PayloadTalkToAgent,
		Content:       "Talk to agent",
	}
	result, err := f.processor.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, result.Escalated)
	assert.Equal(t, 1, f.handoff.calls)
}

func TestIdleSessionReactivates(t *testing.T) {
	f := newFixture(&models.Classification{
		Intent: models.IntentGreeting, Entities: &models.ExtractedInfo{}, Confidence: 1,
	}, nil)
	f.sessions.sess.State = models.SessionStateIdle

	_, err := f.processor.ProcessMessage(context.Background(), textMessage("hello again"))
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateActive, f.sessions.sess.State)
}

func TestLanguageDetection(t *testing.T) {
	assert.Equal(t, "ar", DetectLanguage("مرحبا كيف حالك"))
	assert.Equal(t, "en", DetectLanguage("hello how are you"))
	assert.Equal(t, "mixed", DetectLanguage("hello يا باشا how are you يعني"))
	assert.Equal(t, "", DetectLanguage("123 !!"))
}
