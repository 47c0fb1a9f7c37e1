package entities

// QueryType is the closed set of query classifications.
type QueryType string

const (
	QueryTypeLocationSearch QueryType = "location_search"
	QueryTypeBudgetSearch   QueryType = "budget_search"
	QueryTypeAmenitySearch  QueryType = "amenity_search"
	QueryTypeQualitySearch  QueryType = "quality_search"
	QueryTypeRefinement     QueryType = "refinement"
	QueryTypeGeneral        QueryType = "general"
)

// RefinementKind says how a refinement narrows the previous turn.
type RefinementKind string

const (
	RefinementNone        RefinementKind = ""
	RefinementCheaper     RefinementKind = "cheaper"
	RefinementPricier     RefinementKind = "pricier"
	RefinementBetterRated RefinementKind = "better_rated"
	RefinementMoreOptions RefinementKind = "more_options"
)

// QueryFilters are the structured constraints extracted from a query.
type QueryFilters struct {
	City      string   `json:"city,omitempty"`
	MaxPrice  *float64 `json:"max_price,omitempty"`
	MinPrice  *float64 `json:"min_price,omitempty"`
	Amenities []string `json:"amenities,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
}

// HasPriceFilter reports whether a live price must be verified.
func (f QueryFilters) HasPriceFilter() bool {
	return f.MaxPrice != nil || f.MinPrice != nil
}

// AcceptsPrice reports whether price satisfies the price bounds.
func (f QueryFilters) AcceptsPrice(price float64) bool {
	if f.MaxPrice != nil && price > *f.MaxPrice {
		return false
	}
	if f.MinPrice != nil && price < *f.MinPrice {
		return false
	}
	return true
}

// AcceptsRating reports whether rating satisfies the rating floor.
func (f QueryFilters) AcceptsRating(rating float64) bool {
	return f.MinRating == nil || rating >= *f.MinRating
}

// Clone returns a deep copy.
func (f QueryFilters) Clone() QueryFilters {
	out := QueryFilters{City: f.City}
	if f.MaxPrice != nil {
		out.MaxPrice = Float64(*f.MaxPrice)
	}
	if f.MinPrice != nil {
		out.MinPrice = Float64(*f.MinPrice)
	}
	if f.MinRating != nil {
		out.MinRating = Float64(*f.MinRating)
	}
	if len(f.Amenities) > 0 {
		out.Amenities = append([]string(nil), f.Amenities...)
	}
	return out
}

// IsZero reports whether no filter is set.
func (f QueryFilters) IsZero() bool {
	return f.City == "" && f.MaxPrice == nil && f.MinPrice == nil &&
		len(f.Amenities) == 0 && f.MinRating == nil
}

// QueryContext is the per-request interpretation of a raw query.
type QueryContext struct {
	RawQuery      string         `json:"raw_query"`
	SemanticQuery string         `json:"semantic_query"`
	QueryType     QueryType      `json:"query_type"`
	Filters       QueryFilters   `json:"filters"`
	IsRefinement  bool           `json:"is_refinement"`
	Refinement    RefinementKind `json:"refinement,omitempty"`
	// UnresolvedCity holds a city-like phrase that matched no known city.
	UnresolvedCity string `json:"unresolved_city,omitempty"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
