package models

// ExtractedInfo is the open-world entity bag accumulated across turns. All
// fields are optional; pointers distinguish "absent" from zero values. Keys
// the extractor returns that have no typed field land in Extra and survive
// merges untouched.
type ExtractedInfo struct {
	Budget                *float64 `json:"budget,omitempty"`
	MinPrice              *float64 `json:"minPrice,omitempty"`
	MaxPrice              *float64 `json:"maxPrice,omitempty"`
	Location              string   `json:"location,omitempty"`
	City                  string   `json:"city,omitempty"`
	District              string   `json:"district,omitempty"`
	PropertyType          string   `json:"propertyType,omitempty"`
	Bedrooms              *int     `json:"bedrooms,omitempty"`
	Bathrooms             *int     `json:"bathrooms,omitempty"`
	Area                  *float64 `json:"area,omitempty"`
	MinArea               *float64 `json:"minArea,omitempty"`
	MaxArea               *float64 `json:"maxArea,omitempty"`
	DeliveryTimeline      string   `json:"deliveryTimeline,omitempty"`
	Urgency               string   `json:"urgency,omitempty"`
	PaymentMethod         string   `json:"paymentMethod,omitempty"`
	DownPaymentPercentage *float64 `json:"downPaymentPercentage,omitempty"`
	InstallmentYears      *int     `json:"installmentYears,omitempty"`
	Purpose               string   `json:"purpose,omitempty"`
	CustomerName          string   `json:"customerName,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// FilledFieldCount reports how many entity fields carry a value. Used by the
// lead scorer's informationProvided factor.
func (e *ExtractedInfo) FilledFieldCount() int {
	if e == nil {
		return 0
	}
	n := 0
	if e.Budget != nil {
		n++
	}
	if e.MinPrice != nil {
		n++
	}
	if e.MaxPrice != nil {
		n++
	}
	if e.Location != "" {
		n++
	}
	if e.City != "" {
		n++
	}
	if e.District != "" {
		n++
	}
	if e.PropertyType != "" {
		n++
	}
	if e.Bedrooms != nil {
		n++
	}
	if e.Bathrooms != nil {
		n++
	}
	if e.Area != nil {
		n++
	}
	if e.MinArea != nil {
		n++
	}
	if e.MaxArea != nil {
		n++
	}
	if e.DeliveryTimeline != "" {
		n++
	}
	if e.Urgency != "" {
		n++
	}
	if e.PaymentMethod != "" {
		n++
	}
	if e.DownPaymentPercentage != nil {
		n++
	}
	if e.InstallmentYears != nil {
		n++
	}
	if e.Purpose != "" {
		n++
	}
	if e.CustomerName != "" {
		n++
	}
	n += len(e.Extra)
	return n
}
