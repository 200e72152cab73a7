package escalation

import "github.com/ahmmed-fouad/real-estate-agent/pkg/models"

// UrgencyFor maps a trigger onto the notification urgency. Urgency drives
// only the email subject line and accent color.
func UrgencyFor(trigger models.EscalationTrigger) models.EscalationUrgency {
	switch trigger {
	case models.TriggerExplicitRequest, models.TriggerComplaint, models.TriggerFrustration:
		return models.UrgencyHigh
	case models.TriggerNegotiationRequest, models.TriggerRepeatedQuestion:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}
