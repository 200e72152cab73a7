package response

import (
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// maxCards caps how many property cards attach to one reply.
const maxCards = 3

// cannotHelpPhrases is the conservative bilingual cue list for
// self-escalation. Merely mentioning an agent as an option must NOT trigger,
// so each phrase expresses inability, not availability.
var cannotHelpPhrases = []string{
	"i cannot help",
	"i can't help",
	"i am unable to",
	"i'm unable to",
	"beyond my capabilities",
	"i don't have that information",
	"مش قادر أساعدك",
	"لا أستطيع مساعدتك",
	"معنديش المعلومات دي",
	"خارج قدراتي",
}

// Process runs the post-processing pipeline over the LLM text: template
// short-circuit, price rewriting, property cards, CTA buttons, optional
// location pin, and the self-escalation flag.
func Process(in Input) *Rich {
	out := &Rich{}

	if tmpl := templateFor(in); tmpl != "" {
		out.Text = tmpl
	} else {
		out.Text = RewritePrices(in.Text)
	}

	for idx := range in.Properties {
		if idx == maxCards {
			break
		}
		p := &in.Properties[idx]
		card := PropertyCard{
			PropertyID:   p.ID,
			ProjectName:  p.ProjectName,
			City:         p.City,
			District:     p.District,
			PropertyType: p.PropertyType,
			Price:        FormatBilingualPrice(int64(p.BasePrice)),
			Area:         p.Area,
			Bedrooms:     p.Bedrooms,
			Bathrooms:    p.Bathrooms,
		}
		if len(p.MediaURLs) > 0 {
			card.ImageURL = p.MediaURLs[0]
		}
		out.Cards = append(out.Cards, card)
	}

	out.Buttons = buttonsFor(in.Intent, len(in.Properties) > 0)

	if in.Intent == models.IntentLocationInfo && len(in.Properties) > 0 {
		top := in.Properties[0]
		if top.Latitude != 0 || top.Longitude != 0 {
			out.Location = &models.LocationRef{
				Latitude:  top.Latitude,
				Longitude: top.Longitude,
				Name:      top.ProjectName,
				Address:   joinNonEmpty(top.District, top.City),
			}
		}
	}

	out.RequiresEscalation = requiresEscalation(in.Intent, out.Text)
	return out
}

// requiresEscalation is true iff the intent itself demands a human or the
// reply text matches a cannot-help phrase.
func requiresEscalation(intent models.Intent, text string) bool {
	if intent == models.IntentAgentRequest || intent == models.IntentComplaint {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range cannotHelpPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
