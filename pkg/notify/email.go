package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/masking"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// EmailMessage is one agent-facing email. Urgency drives only the subject
// prefix and accent color.
type EmailMessage struct {
	Subject     string
	Body        string
	AccentColor string
}

// Emailer delivers agent emails. A real provider is injected in deployments
// that configure one.
type Emailer interface {
	Send(ctx context.Context, to string, msg EmailMessage) error
}

// SMSer delivers agent SMS notifications.
type SMSer interface {
	Send(ctx context.Context, to, text string) error
}

var urgencyColor = map[models.EscalationUrgency]string{
	models.UrgencyHigh:   "#d62828",
	models.UrgencyMedium: "#f77f00",
	models.UrgencyLow:    "#457b9d",
}

var urgencyPrefix = map[models.EscalationUrgency]string{
	models.UrgencyHigh:   "[URGENT] ",
	models.UrgencyMedium: "[Action needed] ",
	models.UrgencyLow:    "",
}

func escalationEmail(in Input) EmailMessage {
	return EmailMessage{
		Subject: fmt.Sprintf("%sCustomer %s is waiting for you",
			urgencyPrefix[in.Urgency], masking.Phone(in.CustomerPhone)),
		Body:        fmt.Sprintf("Trigger: %s\n\n%s", in.Trigger, in.Summary),
		AccentColor: urgencyColor[in.Urgency],
	}
}

func hotLeadEmail(in Input) EmailMessage {
	return EmailMessage{
		Subject:     fmt.Sprintf("Hot lead: %s (score %d)", masking.Phone(in.CustomerPhone), in.LeadScore),
		Body:        "A conversation just crossed the hot-lead threshold. Open the portal to follow up.",
		AccentColor: urgencyColor[models.UrgencyHigh],
	}
}

// LoggedEmailer is the default Emailer: it only logs. Deployments inject a
// real provider behind the same capability.
type LoggedEmailer struct{}

// Send logs the email instead of delivering it.
func (LoggedEmailer) Send(_ context.Context, to string, msg EmailMessage) error {
	slog.Info("Email notification (logged only)", "to", masking.Text(to), "subject", msg.Subject)
	return nil
}

// LoggedSMSer is the default SMSer: it only logs, matching the source
// behavior. A real provider can replace it behind the same capability.
type LoggedSMSer struct{}

// Send logs the SMS instead of delivering it.
func (LoggedSMSer) Send(_ context.Context, to, text string) error {
	slog.Info("SMS notification (logged only)", "to", masking.Phone(to), "length", len(text))
	return nil
}
