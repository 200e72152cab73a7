package whatsapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// ParseWebhook normalizes a Meta-style webhook body into ParsedMessage
// records. Unsupported message types are skipped, not errors: the gateway
// sends statuses and reactions on the same hook.
func ParseWebhook(body []byte, agentID string) ([]models.ParsedMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	var out []models.ParsedMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				parsed, ok := normalizeMessage(msg, agentID, names[msg.From])
				if ok {
					out = append(out, parsed)
				}
			}
		}
	}
	return out, nil
}

func normalizeMessage(msg webhookMessage, agentID, fromName string) (models.ParsedMessage, bool) {
	parsed := models.ParsedMessage{
		MessageID: msg.ID,
		From:      "+" + msg.From,
		FromName:  fromName,
		AgentID:   agentID,
		Timestamp: normalizeTimestamp(msg.Timestamp),
		Type:      models.MessageType(msg.Type),
	}

	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return parsed, false
		}
		parsed.Content = msg.Text.Body
	case "image", "video", "document", "audio":
		media := firstMedia(msg)
		if media == nil {
			return parsed, false
		}
		parsed.Media = &models.MediaRef{
			MediaID:  media.ID,
			MimeType: media.MimeType,
			Caption:  media.Caption,
		}
		parsed.Content = media.Caption
	case "location":
		if msg.Location == nil {
			return parsed, false
		}
		parsed.Location = &models.LocationRef{
			Latitude:  msg.Location.Latitude,
			Longitude: msg.Location.Longitude,
			Name:      msg.Location.Name,
			Address:   msg.Location.Address,
		}
	case "interactive":
		if msg.Interactive == nil || msg.Interactive.ButtonReply == nil {
			return parsed, false
		}
		parsed.ButtonPayload = msg.Interactive.ButtonReply.ID
		parsed.Content = msg.Interactive.ButtonReply.Title
	default:
		return parsed, false
	}
	return parsed, true
}

func firstMedia(msg webhookMessage) *webhookMedia {
	for _, m := range []*webhookMedia{msg.Image, msg.Video, msg.Document, msg.Audio} {
		if m != nil {
			return m
		}
	}
	return nil
}

// normalizeTimestamp converts the gateway's epoch-seconds string to UTC
// ISO-8601. Unparseable values fall back to now.
func normalizeTimestamp(ts string) string {
	if epoch, err := strconv.ParseInt(ts, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}
