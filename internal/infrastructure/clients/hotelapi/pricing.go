package hotelapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/providers"
	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const pricingDetailsPath = "/api/hotel/ai/details/%s/"

// PricingClient reads live prices. Calls go through a circuit breaker so a
// failing pricing service is skipped quickly instead of costing a full timeout
// per candidate.
type PricingClient struct {
	transport
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
	now     func() time.Time
}

var _ providers.PricingProvider = (*PricingClient)(nil)

// PricingOptions configures a PricingClient.
type PricingOptions struct {
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// NewPricingClient creates a live-pricing client.
func NewPricingClient(baseURL string, opts PricingOptions, logger zerolog.Logger) *PricingClient {
	failures := uint32(opts.BreakerFailures)
	if failures == 0 {
		failures = 5
	}
	c := &PricingClient{
		transport: newTransport(baseURL, opts.Timeout),
		logger:    logger,
		now:       time.Now,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pricing",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("pricing circuit breaker changed state")
		},
	})
	return c
}

type pricingOffer struct {
	DiscountPercentage flexFloat `json:"discount_percentage"`
	SpecialPerks       string    `json:"special_perks"`
	ValidUntil         string    `json:"valid_until"`
}

type pricingHotel struct {
	ID             flexString     `json:"id"`
	BasePrice      flexFloat      `json:"base_price_per_night"`
	Currency       string         `json:"currency"`
	CommissionRate flexFloat      `json:"commission_rate"`
	Offers         []pricingOffer `json:"active_special_offers"`
}

type pricingResponse struct {
	Message string        `json:"message"`
	Hotel   *pricingHotel `json:"hotel"`
}

// errHotelNotFound travels through the breaker as a success value.
var errHotelNotFound = errors.New("hotel not found or not approved")

// GetLivePrice implements providers.PricingProvider.
func (c *PricingClient) GetLivePrice(ctx context.Context, hotelID string) (*entities.LivePrice, error) {
	endpoint := c.baseURL + fmt.Sprintf(pricingDetailsPath, url.PathEscape(hotelID))

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var out pricingResponse
		err := c.doJSON(ctx, http.MethodGet, endpoint, &out)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return errHotelNotFound, nil
		}
		if err != nil {
			return nil, err
		}
		if out.Hotel == nil {
			return errHotelNotFound, nil
		}
		return &out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.NewExternalError("pricing service unavailable", err)
		}
		return nil, apperrors.NewExternalError("pricing request for hotel "+hotelID+" failed", err)
	}
	if result == errHotelNotFound {
		return nil, apperrors.NewNotFoundError("hotel " + hotelID + " not found or not approved")
	}

	return c.toLivePrice(hotelID, result.(*pricingResponse).Hotel), nil
}

func (c *PricingClient) toLivePrice(hotelID string, h *pricingHotel) *entities.LivePrice {
	price := &entities.LivePrice{
		HotelID:        hotelID,
		Price:          float64(h.BasePrice),
		Currency:       h.Currency,
		CommissionRate: float64(h.CommissionRate),
		FetchedAt:      c.now(),
	}
	if price.Currency == "" {
		price.Currency = "USD"
	}
	for _, o := range h.Offers {
		validUntil, err := parseValidUntil(o.ValidUntil)
		if err != nil {
			c.logger.Warn().Err(err).Str("hotel_id", hotelID).Msg("dropping offer with unreadable expiry")
			continue
		}
		price.Offers = append(price.Offers, entities.Offer{
			DiscountPercentage: float64(o.DiscountPercentage),
			Perks:              o.SpecialPerks,
			ValidUntil:         validUntil,
		})
	}
	return price
}
