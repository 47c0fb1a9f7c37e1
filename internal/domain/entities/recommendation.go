package entities

import "time"

// RankedHotel is a candidate scored by the rank node.
type RankedHotel struct {
	HotelID          string        `json:"hotel_id"`
	CompositeScore   float64       `json:"composite_score"`
	SimilarityScore  float64       `json:"similarity_score"`
	NormalizedRating float64       `json:"normalized_rating"`
	Hotel            HotelDocument `json:"hotel"`
}

// HydrationStatus records the outcome of live-price enrichment.
type HydrationStatus string

const (
	HydrationOK     HydrationStatus = "ok"
	HydrationStale  HydrationStatus = "stale"
	HydrationFailed HydrationStatus = "failed"

	// HydrationFiltered counts priced candidates rejected by the price filter.
	// It only appears in hydration counts, never on a hotel.
	HydrationFiltered HydrationStatus = "filtered"
)

// HydratedHotel is a ranked hotel enriched with live price data.
type HydratedHotel struct {
	RankedHotel
	CurrentPrice    *float64        `json:"current_price,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	CommissionRate  float64         `json:"commission_rate,omitempty"`
	ActiveOffers    []Offer         `json:"active_offers"`
	BestOfferPrice  *float64        `json:"best_offer_price,omitempty"`
	HydrationStatus HydrationStatus `json:"hydration_status"`
	PriceAsOf       *time.Time      `json:"price_as_of,omitempty"`
}

// Clone returns a deep copy so session snapshots never share slices.
func (h HydratedHotel) Clone() HydratedHotel {
	out := h
	out.Hotel = h.Hotel.WithoutEmbedding()
	if h.CurrentPrice != nil {
		out.CurrentPrice = Float64(*h.CurrentPrice)
	}
	if h.BestOfferPrice != nil {
		out.BestOfferPrice = Float64(*h.BestOfferPrice)
	}
	if h.PriceAsOf != nil {
		t := *h.PriceAsOf
		out.PriceAsOf = &t
	}
	out.ActiveOffers = append([]Offer(nil), h.ActiveOffers...)
	return out
}

// RecommendationRequest is the pipeline entry point input.
type RecommendationRequest struct {
	Query        string `json:"query"`
	SessionID    string `json:"session_id,omitempty"`
	ResetSession bool   `json:"reset_session,omitempty"`
}

// ResponseSource says which renderer state produced the text.
type ResponseSource string

const (
	ResponseSourcePrimary  ResponseSource = "primary"
	ResponseSourceFallback ResponseSource = "fallback"
	ResponseSourceTemplate ResponseSource = "template"
)

// SearchScope describes how candidates were retrieved.
type SearchScope string

const (
	SearchScopeCity       SearchScope = "city"
	SearchScopeGlobal     SearchScope = "global"
	SearchScopeCityGlobal SearchScope = "city+global"
	SearchScopeRefinement SearchScope = "refinement"
)

// ResponseMetadata describes how a recommendation was produced.
type ResponseMetadata struct {
	SessionID          string                  `json:"session_id,omitempty"`
	QueryType          QueryType               `json:"query_type"`
	FiltersApplied     QueryFilters            `json:"filters_applied"`
	TotalFound         int                     `json:"total_found"`
	IsRefinement       bool                    `json:"is_refinement"`
	ResponseSource     ResponseSource          `json:"response_source"`
	SearchScope        SearchScope             `json:"search_scope"`
	Hydration          map[HydrationStatus]int `json:"hydration"`
	UnmatchedAmenities []string                `json:"unmatched_amenities,omitempty"`
	Degradations       []string                `json:"degradations,omitempty"`
}

// RecommendationResult is the pipeline entry point output.
type RecommendationResult struct {
	NaturalLanguageResponse string           `json:"natural_language_response"`
	RecommendedHotels       []HydratedHotel  `json:"recommended_hotels"`
	ShownHotelIDs           []string         `json:"shown_hotel_ids"`
	LastHotels              []HydratedHotel  `json:"last_hotels"`
	Metadata                ResponseMetadata `json:"metadata"`
	Status                  string           `json:"status"`
}

// StatusSuccess is the only status a completed pipeline run reports.
const StatusSuccess = "success"
