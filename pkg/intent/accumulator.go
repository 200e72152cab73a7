package intent

import (
	"fmt"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
)

// Validation bounds for extracted entities. Out-of-range values are dropped,
// not clamped: a misparse is worse than a missing field.
const (
	maxBudget   = 1e9
	maxRooms    = 20
	areaWidenBy = 0.10
)

// Merge folds the entities of one turn into the cumulative bag. Non-nil
// scalar fields in delta overwrite; absent fields remain untouched; price and
// area ranges collapse; city+district synthesize a location. The result is
// always validated.
func Merge(existing, delta *models.ExtractedInfo) *models.ExtractedInfo {
	out := &models.ExtractedInfo{}
	if existing != nil {
		*out = *existing
		if existing.Extra != nil {
			out.Extra = make(map[string]any, len(existing.Extra))
			for k, v := range existing.Extra {
				out.Extra[k] = v
			}
		}
	}

	if delta != nil {
		if delta.Budget != nil {
			out.Budget = delta.Budget
		}
		if delta.MinPrice != nil {
			out.MinPrice = delta.MinPrice
		}
		if delta.MaxPrice != nil {
			out.MaxPrice = delta.MaxPrice
		}
		if delta.Location != "" {
			out.Location = delta.Location
		}
		if delta.City != "" {
			out.City = delta.City
		}
		if delta.District != "" {
			out.District = delta.District
		}
		if delta.PropertyType != "" {
			out.PropertyType = delta.PropertyType
		}
		if delta.Bedrooms != nil {
			out.Bedrooms = delta.Bedrooms
		}
		if delta.Bathrooms != nil {
			out.Bathrooms = delta.Bathrooms
		}
		if delta.Area != nil {
			out.Area = delta.Area
		}
		if delta.MinArea != nil {
			out.MinArea = delta.MinArea
		}
		if delta.MaxArea != nil {
			out.MaxArea = delta.MaxArea
		}
		if delta.DeliveryTimeline != "" {
			out.DeliveryTimeline = delta.DeliveryTimeline
		}
		if delta.Urgency != "" {
			out.Urgency = delta.Urgency
		}
		if delta.PaymentMethod != "" {
			out.PaymentMethod = delta.PaymentMethod
		}
		if delta.DownPaymentPercentage != nil {
			out.DownPaymentPercentage = delta.DownPaymentPercentage
		}
		if delta.InstallmentYears != nil {
			out.InstallmentYears = delta.InstallmentYears
		}
		if delta.Purpose != "" {
			out.Purpose = delta.Purpose
		}
		if delta.CustomerName != "" {
			out.CustomerName = delta.CustomerName
		}
		for k, v := range delta.Extra {
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra[k] = v
		}
	}

	// minPrice/maxPrice collapse into a single budget: the max of the pair.
	if out.Budget == nil {
		switch {
		case out.MinPrice != nil && out.MaxPrice != nil:
			b := *out.MaxPrice
			if *out.MinPrice > b {
				b = *out.MinPrice
			}
			out.Budget = &b
		case out.MaxPrice != nil:
			out.Budget = out.MaxPrice
		case out.MinPrice != nil:
			out.Budget = out.MinPrice
		}
	}

	if out.Location == "" && out.City != "" && out.District != "" {
		out.Location = fmt.Sprintf("%s, %s", out.City, out.District)
	}

	// minArea/maxArea collapse into an approximate target area.
	if out.Area == nil {
		switch {
		case out.MinArea != nil && out.MaxArea != nil:
			a := (*out.MinArea + *out.MaxArea) / 2
			out.Area = &a
		case out.MaxArea != nil:
			out.Area = out.MaxArea
		case out.MinArea != nil:
			out.Area = out.MinArea
		}
	}

	return Validate(out)
}

// Validate drops out-of-range entity values.
func Validate(info *models.ExtractedInfo) *models.ExtractedInfo {
	if info == nil {
		return nil
	}
	if info.Budget != nil && (*info.Budget < 0 || *info.Budget > maxBudget) {
		info.Budget = nil
	}
	if info.MinPrice != nil && (*info.MinPrice < 0 || *info.MinPrice > maxBudget) {
		info.MinPrice = nil
	}
	if info.MaxPrice != nil && (*info.MaxPrice < 0 || *info.MaxPrice > maxBudget) {
		info.MaxPrice = nil
	}
	if info.Bedrooms != nil && (*info.Bedrooms < 0 || *info.Bedrooms > maxRooms) {
		info.Bedrooms = nil
	}
	if info.Bathrooms != nil && (*info.Bathrooms < 0 || *info.Bathrooms > maxRooms) {
		info.Bathrooms = nil
	}
	if info.Area != nil && *info.Area < 0 {
		info.Area = nil
	}
	if info.MinArea != nil && *info.MinArea < 0 {
		info.MinArea = nil
	}
	if info.MaxArea != nil && *info.MaxArea < 0 {
		info.MaxArea = nil
	}
	if info.DownPaymentPercentage != nil && (*info.DownPaymentPercentage < 0 || *info.DownPaymentPercentage > 100) {
		info.DownPaymentPercentage = nil
	}
	if info.InstallmentYears != nil && (*info.InstallmentYears < 0 || *info.InstallmentYears > 30) {
		info.InstallmentYears = nil
	}
	return info
}

// ExtractSearchFilters projects the cumulative bag into retrieval filters.
// A lone budget becomes maxPrice; a lone target area widens by ±10%.
func ExtractSearchFilters(info *models.ExtractedInfo) models.SearchFilters {
	var f models.SearchFilters
	if info == nil {
		return f
	}

	switch {
	case info.MinPrice != nil || info.MaxPrice != nil:
		f.MinPrice = info.MinPrice
		f.MaxPrice = info.MaxPrice
	case info.Budget != nil:
		f.MaxPrice = info.Budget
	}

	f.City = info.City
	f.District = info.District
	f.Location = info.Location
	f.PropertyType = info.PropertyType
	f.Bedrooms = info.Bedrooms

	switch {
	case info.MinArea != nil || info.MaxArea != nil:
		f.MinArea = info.MinArea
		f.MaxArea = info.MaxArea
	case info.Area != nil:
		lo := *info.Area * (1 - areaWidenBy)
		hi := *info.Area * (1 + areaWidenBy)
		f.MinArea = &lo
		f.MaxArea = &hi
	}

	return f
}
