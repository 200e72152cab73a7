package models

// SearchFilters projects the accumulated entity bag into the fields the
// retriever can filter on.
type SearchFilters struct {
	MinPrice     *float64 `json:"minPrice,omitempty"`
	MaxPrice     *float64 `json:"maxPrice,omitempty"`
	City         string   `json:"city,omitempty"`
	District     string   `json:"district,omitempty"`
	Location     string   `json:"location,omitempty"`
	PropertyType string   `json:"propertyType,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	MinArea      *float64 `json:"minArea,omitempty"`
	MaxArea      *float64 `json:"maxArea,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
}

// Empty reports whether no filter field is set.
func (f SearchFilters) Empty() bool {
	return f.MinPrice == nil && f.MaxPrice == nil && f.City == "" && f.District == "" &&
		f.Location == "" && f.PropertyType == "" && f.Bedrooms == nil &&
		f.MinArea == nil && f.MaxArea == nil && len(f.Amenities) == 0
}
