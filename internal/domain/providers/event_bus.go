package providers

import (
	"context"

	"github.com/nahid2887/today/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.CatalogEvent) error

	// Subscribe delivers events on channel until ctx is done, then closes the
	// returned channel.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.CatalogEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelCatalog carries index change announcements.
const EventChannelCatalog = "catalog:events"
