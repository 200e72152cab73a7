// Package leads scores conversations and routes quality-transition
// notifications.
package leads

import (
	"math"
	"strings"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// Factor weights. They must sum to 1.0 ± 0.01; WeightsSum exists so tests can
// pin that invariant.
const (
	weightBudgetClarity       = 0.25
	weightLocationSpecific    = 0.20
	weightUrgency             = 0.20
	weightEngagement          = 0.15
	weightInformationProvided = 0.10
	weightPropertyTypeClarity = 0.10
)

// WeightsSum returns the sum of all factor weights.
func WeightsSum() float64 {
	return weightBudgetClarity + weightLocationSpecific + weightUrgency +
		weightEngagement + weightInformationProvided + weightPropertyTypeClarity
}

// CalculateScore is a pure function from session state to a lead score. Every
// factor lands in [0,100] and so does the weighted total.
func CalculateScore(sess *models.Session) models.LeadScore {
	info := sess.ExtractedInfo

	factors := models.LeadScoreFactors{
		BudgetClarity:       scoreBudgetClarity(info),
		LocationSpecific:    scoreLocationSpecific(info),
		Urgency:             scoreUrgency(info),
		Engagement:          scoreEngagement(sess),
		InformationProvided: scoreInformationProvided(info),
		PropertyTypeClarity: scorePropertyTypeClarity(info),
	}

	total := int(math.Round(
		float64(factors.BudgetClarity)*weightBudgetClarity +
			float64(factors.LocationSpecific)*weightLocationSpecific +
			float64(factors.Urgency)*weightUrgency +
			float64(factors.Engagement)*weightEngagement +
			float64(factors.InformationProvided)*weightInformationProvided +
			float64(factors.PropertyTypeClarity)*weightPropertyTypeClarity))
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	return models.LeadScore{
		Total:   total,
		Factors: factors,
		Quality: models.QualityForScore(total),
	}
}

// scoreBudgetClarity: 0 none, 40 range only, 80 exact budget, +20 when a
// financing method is also known (capped at 100).
func scoreBudgetClarity(info *models.ExtractedInfo) int {
	if info == nil {
		return 0
	}
	score := 0
	switch {
	case info.Budget != nil:
		score = 80
	case info.MinPrice != nil || info.MaxPrice != nil:
		score = 40
	}
	if score > 0 && info.PaymentMethod != "" {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	return score
}

// compoundHints mark a location string more specific than a district.
var compoundHints = []string{"compound", "كمبوند", "project", "مشروع", "residence", "heights", "hills", "bay"}

// scoreLocationSpecific: 0 none, 40 city only, 70 district-level, 100 when a
// compound or neighborhood is named.
func scoreLocationSpecific(info *models.ExtractedInfo) int {
	if info == nil {
		return 0
	}
	location := strings.ToLower(info.Location)
	for _, hint := range compoundHints {
		if strings.Contains(location, hint) {
			return 100
		}
	}
	if info.District != "" {
		return 70
	}
	if info.City != "" || info.Location != "" {
		return 40
	}
	return 0
}

var immediateWords = []string{"immediate", "now", "asap", "this week", "فورا", "حالا", "دلوقتي", "الاسبوع ده"}
var soonWords = []string{"soon", "this month", "قريب", "الشهر ده"}
var monthsWords = []string{"month", "months", "quarter", "شهر", "شهور", "أشهر"}

// scoreUrgency: 0 none, 30 vague, 50 "soon", 70 within months, 100 immediate.
func scoreUrgency(info *models.ExtractedInfo) int {
	if info == nil {
		return 0
	}
	text := strings.ToLower(strings.TrimSpace(info.Urgency + " " + info.DeliveryTimeline))
	if strings.TrimSpace(text) == "" {
		return 0
	}
	for _, w := range immediateWords {
		if strings.Contains(text, w) {
			return 100
		}
	}
	for _, w := range soonWords {
		if strings.Contains(text, w) {
			return 50
		}
	}
	for _, w := range monthsWords {
		if strings.Contains(text, w) {
			return 70
		}
	}
	return 30
}

// scoreEngagement tiers on user-message count, +15 when the customer asked at
// least three questions.
func scoreEngagement(sess *models.Session) int {
	userMessages := sess.UserMessages()
	score := 0
	switch n := len(userMessages); {
	case n >= 10:
		score = 85
	case n >= 6:
		score = 70
	case n >= 3:
		score = 50
	case n >= 1:
		score = 25
	}

	questions := 0
	for _, m := range userMessages {
		if strings.ContainsAny(m.Content, "?؟") {
			questions++
		}
	}
	if questions >= 3 {
		score += 15
	}
	if score > 100 {
		score = 100
	}
	return score
}

// scoreInformationProvided tiers on how many entity fields are filled.
func scoreInformationProvided(info *models.ExtractedInfo) int {
	switch n := info.FilledFieldCount(); {
	case n >= 7:
		return 100
	case n >= 5:
		return 75
	case n >= 3:
		return 50
	case n >= 1:
		return 25
	default:
		return 0
	}
}

// scorePropertyTypeClarity: 50 for a type, +20 bedrooms, +20 area, +10 when
// amenity preferences surfaced.
func scorePropertyTypeClarity(info *models.ExtractedInfo) int {
	if info == nil || info.PropertyType == "" {
		return 0
	}
	score := 50
	if info.Bedrooms != nil {
		score += 20
	}
	if info.Area != nil || info.MinArea != nil || info.MaxArea != nil {
		score += 20
	}
	if _, ok := info.Extra["amenities"]; ok {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}
