package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/masking"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/ratelimit"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/response"
)

// ErrRateLimited is returned when the outbound gate is closed. Jobs treat it
// as retryable.
var ErrRateLimited = errors.New("outbound rate limit exceeded")

// Limiter is the gate consulted before every send.
type Limiter interface {
	CheckLimit(ctx context.Context, id string) ratelimit.Result
	Increment(ctx context.Context, id string)
}

// Sender translates rich replies into the gateway wire format. Every send is
// gated by the rate limiter keyed on the sending phone number.
type Sender struct {
	limiter    Limiter
	httpClient *http.Client
	cfg        *config.WhatsAppConfig
	token      string
	logger     *slog.Logger
}

// NewSender creates a sender. The gateway token is read from the configured
// environment variable.
func NewSender(limiter Limiter, cfg *config.WhatsAppConfig) (*Sender, error) {
	token := os.Getenv(cfg.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("missing gateway token: %s is not set", cfg.TokenEnv)
	}
	return &Sender{
		limiter:    limiter,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:        cfg,
		token:      token,
		logger:     slog.Default().With("component", "whatsapp-sender"),
	}, nil
}

// SendText delivers a plain text message.
func (s *Sender) SendText(ctx context.Context, to, text string) error {
	return s.send(ctx, &outboundMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textPayload{Body: text},
	})
}

// SendRich delivers a post-processed reply: the main body (interactive when
// buttons are attached), then the optional location pin. messageID rides
// along for gateway-side idempotence where supported.
func (s *Sender) SendRich(ctx context.Context, to, messageID string, rich *response.Rich) error {
	body := rich.Text
	if cards := renderCards(rich.Cards); cards != "" {
		body = body + "\n\n" + cards
	}

	msg := &outboundMessage{
		MessagingProduct:      "whatsapp",
		To:                    to,
		BizOpaqueCallbackData: messageID,
	}
	if len(rich.Buttons) > 0 {
		msg.Type = "interactive"
		msg.Interactive = &interactivePayload{
			Type:   "button",
			Body:   &interactiveBody{Text: body},
			Action: &interactiveAction{Buttons: toWireButtons(rich.Buttons)},
		}
	} else {
		msg.Type = "text"
		msg.Text = &textPayload{Body: body}
	}

	if err := s.send(ctx, msg); err != nil {
		return err
	}

	if rich.Location != nil {
		return s.send(ctx, &outboundMessage{
			MessagingProduct: "whatsapp",
			To:               to,
			Type:             "location",
			Location: &locationPayload{
				Latitude:  rich.Location.Latitude,
				Longitude: rich.Location.Longitude,
				Name:      rich.Location.Name,
				Address:   rich.Location.Address,
			},
		})
	}
	return nil
}

// send gates on the rate limiter, posts to the gateway with retrying backoff,
// then increments the windows.
func (s *Sender) send(ctx context.Context, msg *outboundMessage) error {
	limitID := s.cfg.PhoneNumberID
	result := s.limiter.CheckLimit(ctx, limitID)
	if !result.Allowed {
		s.logger.Warn("Outbound send rate limited",
			"to", masking.Phone(msg.To), "reset_in", result.ResetIn)
		return fmt.Errorf("%w: resets in %s", ErrRateLimited, result.ResetIn)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode outbound message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(s.cfg.APIBaseURL, "/"), s.cfg.PhoneNumberID)

	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.token)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err // network errors retry
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 {
			return struct{}{}, fmt.Errorf("gateway returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return struct{}{}, backoff.Permanent(fmt.Errorf("gateway rejected send: %d %s", resp.StatusCode, body))
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
		backoff.WithMaxElapsedTime(s.cfg.HTTPTimeout))
	if err != nil {
		return fmt.Errorf("gateway send failed: %w", err)
	}

	s.limiter.Increment(ctx, limitID)
	s.logger.Debug("Outbound message delivered", "to", masking.Phone(msg.To), "type", msg.Type)
	return nil
}

func toWireButtons(buttons []response.Button) []interactiveButton {
	out := make([]interactiveButton, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, interactiveButton{
			Type: "reply",
			Reply: buttonReply{
				ID:    b.Payload,
				Title: b.TitleEN + " / " + b.TitleAR,
			},
		})
	}
	return out
}

// renderCards flattens property cards into text lines; the gateway has no
// native card type for this surface.
func renderCards(cards []response.PropertyCard) string {
	if len(cards) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, c := range cards {
		if i > 0 {
			sb.WriteString("\n")
		}
		name := c.ProjectName
		if name == "" {
			name = c.PropertyType
		}
		fmt.Fprintf(&sb, "%d) %s — %s", i+1, name, c.Price)
		if c.Bedrooms > 0 {
			fmt.Fprintf(&sb, " | %d BR", c.Bedrooms)
		}
		if c.Area > 0 {
			fmt.Fprintf(&sb, " | %.0f sqm", c.Area)
		}
		if c.District != "" || c.City != "" {
			fmt.Fprintf(&sb, " | %s", strings.TrimPrefix(strings.TrimSpace(c.District+" "+c.City), " "))
		}
	}
	return sb.String()
}
