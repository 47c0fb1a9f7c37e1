package entities

import "time"

// Offer is a special offer attached to a hotel by the pricing feed.
type Offer struct {
	DiscountPercentage float64   `json:"discount_percentage"`
	Perks              string    `json:"perks,omitempty"`
	ValidUntil         time.Time `json:"valid_until"`
}

// ActiveAt reports whether the offer is still valid at t.
func (o Offer) ActiveAt(t time.Time) bool {
	return o.ValidUntil.After(t)
}

// LivePrice is one answer from the live-pricing feed.
type LivePrice struct {
	HotelID        string    `json:"hotel_id"`
	Price          float64   `json:"price"`
	Currency       string    `json:"currency"`
	CommissionRate float64   `json:"commission_rate"`
	Offers         []Offer   `json:"offers,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// ActiveOffers returns only the offers valid after now.
func (p LivePrice) ActiveOffers(now time.Time) []Offer {
	var out []Offer
	for _, o := range p.Offers {
		if o.ActiveAt(now) {
			out = append(out, o)
		}
	}
	return out
}
