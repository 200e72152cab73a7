package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/ratelimit"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/response"
)

const webhookBody = `{
  "entry": [{
    "changes": [{
      "value": {
        "metadata": {"phone_number_id": "555"},
        "contacts": [{"wa_id": "201001234567", "profile": {"name": "Ahmed"}}],
        "messages": [
          {"id": "wamid.1", "from": "201001234567", "timestamp": "1722500000", "type": "text", "text": {"body": "مرحبا"}},
          {"id": "wamid.2", "from": "201001234567", "timestamp": "1722500001", "type": "image", "image": {"id": "media-9", "mime_type": "image/jpeg", "caption": "my place"}},
          {"id": "wamid.3", "from": "201001234567", "timestamp": "1722500002", "type": "location", "location": {"latitude": 30.1, "longitude": 31.2}},
          {"id": "wamid.4", "from": "201001234567", "timestamp": "1722500003", "type": "interactive", "interactive": {"type": "button_reply", "button_reply": {"id": "schedule_viewing", "title": "Schedule viewing"}}},
          {"id": "wamid.5", "from": "201001234567", "timestamp": "1722500004", "type": "reaction"}
        ]
      }
    }]
  }]
}`

func TestParseWebhook(t *testing.T) {
	messages, err := ParseWebhook([]byte(webhookBody), "agent-1")
	require.NoError(t, err)
	require.Len(t, messages, 4) // the reaction is skipped

	text := messages[0]
	assert.Equal(t, "wamid.1", text.MessageID)
	assert.Equal(t, "+201001234567", text.From)
	assert.Equal(t, "Ahmed", text.FromName)
	assert.Equal(t, models.MessageTypeText, text.Type)
	assert.Equal(t, "مرحبا", text.Content)
	assert.Equal(t, "agent-1", text.AgentID)

	ts, err := time.Parse(time.RFC3339, text.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, int64(1722500000), ts.Unix())

	image := messages[1]
	require.NotNil(t, image.Media)
	assert.Equal(t, "media-9", image.Media.MediaID)

	location := messages[2]
	require.NotNil(t, location.Location)
	assert.Equal(t, 30.1, location.Location.Latitude)

	button := messages[3]
	assert.Equal(t, "schedule_viewing", button.ButtonPayload)
}

type fakeLimiter struct {
	allowed    bool
	increments atomic.Int64
}

func (f *fakeLimiter) CheckLimit(context.Context, string) ratelimit.Result {
	return ratelimit.Result{Allowed: f.allowed, ResetIn: time.Second, Limit: 80}
}

func (f *fakeLimiter) Increment(context.Context, string) {
	f.increments.Add(1)
}

func newTestSender(t *testing.T, limiter Limiter, gatewayURL string) *Sender {
	t.Helper()
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "test-token")
	sender, err := NewSender(limiter, &config.WhatsAppConfig{
		APIBaseURL:    gatewayURL,
		PhoneNumberID: "555",
		TokenEnv:      "WHATSAPP_ACCESS_TOKEN",
		HTTPTimeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return sender
}

func TestSendRichTranslatesToWireFormat(t *testing.T) {
	var got outboundMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/555/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	limiter := &fakeLimiter{allowed: true}
	sender := newTestSender(t, limiter, server.URL)

	rich := &response.Rich{
		Text: "Here are your options",
		Cards: []response.PropertyCard{{
			PropertyID: "p1", ProjectName: "Palm Hills", Price: "3,000,000 EGP (٣،٠٠٠،٠٠٠ جنيه)",
			Bedrooms: 3, Area: 120, City: "Cairo",
		}},
		Buttons: []response.Button{
			{Payload: "schedule_viewing", TitleEN: "Schedule viewing", TitleAR: "حجز معاينة"},
		},
	}
	require.NoError(t, sender.SendRich(context.Background(), "+201001234567", "wamid.1", rich))

	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "interactive", got.Type)
	require.NotNil(t, got.Interactive)
	assert.Contains(t, got.Interactive.Body.Text, "Palm Hills")
	require.Len(t, got.Interactive.Action.Buttons, 1)
	assert.Equal(t, "schedule_viewing", got.Interactive.Action.Buttons[0].Reply.ID)
	assert.Equal(t, "wamid.1", got.BizOpaqueCallbackData)
	assert.Equal(t, int64(1), limiter.increments.Load())
}

func TestSendLocationPinFollowsBody(t *testing.T) {
	var types []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg outboundMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		types = append(types, msg.Type)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := newTestSender(t, &fakeLimiter{allowed: true}, server.URL)
	rich := &response.Rich{
		Text:     "It's here",
		Location: &models.LocationRef{Latitude: 30.1, Longitude: 31.2, Name: "Palm Hills"},
	}
	require.NoError(t, sender.SendRich(context.Background(), "+20100", "wamid.2", rich))
	assert.Equal(t, []string{"text", "location"}, types)
}

func TestSendBlockedByRateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("gateway must not be called when the limiter denies")
	}))
	defer server.Close()

	limiter := &fakeLimiter{allowed: false}
	sender := newTestSender(t, limiter, server.URL)

	err := sender.SendText(context.Background(), "+20100", "hi")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int64(0), limiter.increments.Load())
}

func TestSendRetriesOn5xx(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := newTestSender(t, &fakeLimiter{allowed: true}, server.URL)
	require.NoError(t, sender.SendText(context.Background(), "+20100", "hi"))
	assert.Equal(t, int64(3), calls.Load())
}

func TestSendDoesNotRetryOn4xx(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := newTestSender(t, &fakeLimiter{allowed: true}, server.URL)
	err := sender.SendText(context.Background(), "+20100", "hi")
	assert.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())
}
