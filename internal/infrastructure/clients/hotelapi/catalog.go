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
	"github.com/nahid2887/today/pkg/retry"
	"github.com/rs/zerolog"
)

const catalogSyncPath = "/api/hotel/sync/"

// CatalogClient reads the hotel catalog feed.
type CatalogClient struct {
	transport
	retry  retry.Config
	logger zerolog.Logger
}

var _ providers.CatalogFeed = (*CatalogClient)(nil)

// NewCatalogClient creates a catalog feed client.
func NewCatalogClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *CatalogClient {
	return &CatalogClient{
		transport: newTransport(baseURL, timeout),
		retry:     retry.FeedConfig(),
		logger:    logger,
	}
}

type catalogHotel struct {
	ID            flexString `json:"id"`
	Name          string     `json:"hotel_name"`
	City          string     `json:"city"`
	Country       string     `json:"country"`
	Description   string     `json:"description"`
	Amenities     flexList   `json:"amenities"`
	AverageRating flexFloat  `json:"average_rating"`
	TotalRatings  flexFloat  `json:"total_ratings"`
}

type catalogResponse struct {
	Message string         `json:"message"`
	Count   int            `json:"count"`
	Hotels  []catalogHotel `json:"hotels"`
}

// FetchHotels implements providers.CatalogFeed.
func (c *CatalogClient) FetchHotels(ctx context.Context, since *time.Time) ([]entities.HotelDocument, error) {
	parsed, err := url.Parse(c.baseURL + catalogSyncPath)
	if err != nil {
		return nil, err
	}
	if since != nil {
		q := parsed.Query()
		q.Set("since", since.UTC().Format(time.RFC3339))
		parsed.RawQuery = q.Encode()
	}

	var out catalogResponse
	err = retry.DoWithLog(ctx, c.retry, "catalog feed",
		func() error {
			err := c.doJSON(ctx, http.MethodGet, parsed.String(), &out)
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Retryable() {
				return retry.Permanent(err)
			}
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			c.logger.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("catalog fetch failed, retrying")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	docs := make([]entities.HotelDocument, 0, len(out.Hotels))
	for _, h := range out.Hotels {
		if h.ID == "" {
			c.logger.Warn().Str("hotel_name", h.Name).Msg("skipping catalog record without id")
			continue
		}
		docs = append(docs, entities.HotelDocument{
			ID:            string(h.ID),
			Name:          h.Name,
			City:          h.City,
			Country:       h.Country,
			Description:   h.Description,
			Amenities:     h.Amenities,
			AverageRating: float64(h.AverageRating),
			TotalRatings:  int(h.TotalRatings),
		})
	}
	return docs, nil
}
