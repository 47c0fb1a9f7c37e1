package providers

import (
	"context"
	"time"

	"github.com/nahid2887/today/internal/domain/entities"
)

// CatalogFeed lists hotels from the external catalog.
type CatalogFeed interface {
	// FetchHotels returns every hotel, or only those changed after since.
	FetchHotels(ctx context.Context, since *time.Time) ([]entities.HotelDocument, error)
}
