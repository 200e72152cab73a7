package rag

import (
	"fmt"
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/response"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/vectorstore"
)

// maxDocumentChars bounds how much of a document's chunks enter the context.
const maxDocumentChars = 1000

// maxDocumentChunks bounds how many leading chunks are considered.
const maxDocumentChunks = 3

// FormatContext renders the retrieval result as the context string appended
// to the system prompt: knowledge base first, then available properties.
func FormatContext(documents []vectorstore.DocumentMatch, properties []vectorstore.PropertyMatch) string {
	var sb strings.Builder

	if len(documents) > 0 {
		sb.WriteString("KNOWLEDGE BASE:\n")
		for _, m := range documents {
			sb.WriteString(formatDocument(&m.Document))
			sb.WriteString("\n")
		}
	}

	if len(properties) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("AVAILABLE PROPERTIES:\n")
		for i, m := range properties {
			fmt.Fprintf(&sb, "%d. %s", i+1, formatProperty(&m.Property))
			sb.WriteString("\n")
		}
	}

	return strings.TrimSpace(sb.String())
}

func formatProperty(p *models.PropertyDocument) string {
	var sb strings.Builder

	name := p.ProjectName
	if name == "" {
		name = p.PropertyType
	}
	fmt.Fprintf(&sb, "%s — %s", name, joinLocation(p.City, p.District))
	fmt.Fprintf(&sb, "\n   Type: %s | Area: %.0f sqm | Bedrooms: %d | Bathrooms: %d",
		p.PropertyType, p.Area, p.Bedrooms, p.Bathrooms)
	fmt.Fprintf(&sb, "\n   Price: %s", response.FormatBilingualPrice(int64(p.BasePrice)))
	if p.PricePerMeter > 0 {
		fmt.Fprintf(&sb, " (%s/sqm)", response.GroupThousands(int64(p.PricePerMeter)))
	}
	if p.DeliveryDate != nil {
		fmt.Fprintf(&sb, "\n   Delivery: %s", p.DeliveryDate.Format("January 2006"))
	}
	if len(p.PaymentPlans) > 0 {
		plan := p.PaymentPlans[0]
		fmt.Fprintf(&sb, "\n   Payment: %.0f%% down, %d years installments",
			plan.DownPaymentPercent, plan.InstallmentYears)
	}
	if len(p.Amenities) > 0 {
		fmt.Fprintf(&sb, "\n   Amenities: %s", strings.Join(p.Amenities, ", "))
	}
	return sb.String()
}

func formatDocument(d *models.KnowledgeDocument) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- %s (%s)", d.Title, d.DocumentType)

	var content strings.Builder
	for i, chunk := range d.ContentChunks {
		if i == maxDocumentChunks {
			break
		}
		if content.Len() > 0 {
			content.WriteString(" ")
		}
		content.WriteString(chunk)
		if content.Len() >= maxDocumentChars {
			break
		}
	}
	text := content.String()
	if runes := []rune(text); len(runes) > maxDocumentChars {
		text = string(runes[:maxDocumentChars]) + "…"
	}
	if text != "" {
		fmt.Fprintf(&sb, "\n  %s", text)
	}
	return sb.String()
}

func joinLocation(city, district string) string {
	switch {
	case city != "" && district != "":
		return district + ", " + city
	case city != "":
		return city
	default:
		return district
	}
}
