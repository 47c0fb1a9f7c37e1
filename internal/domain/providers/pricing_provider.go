package providers

import (
	"context"

	"github.com/nahid2887/today/internal/domain/entities"
)

// PricingProvider fetches live prices for a single hotel.
//
// A hotel that is unknown or unapproved yields a NOT_FOUND AppError, which
// callers treat as a normal outcome.
type PricingProvider interface {
	GetLivePrice(ctx context.Context, hotelID string) (*entities.LivePrice, error)
}
