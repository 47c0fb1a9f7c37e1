package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/nahid2887/today/pkg/config"
	"github.com/nahid2887/today/pkg/retry"
	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// HotelSchema describes the hotel collection with a vector field of dims length.
func HotelSchema(collection string, dims int) *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: collection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "city", Type: "string", Facet: pointer.True()},
			{Name: "country", Type: "string", Optional: pointer.True()},
			{Name: "description", Type: "string", Optional: pointer.True()},
			{Name: "amenities", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "average_rating", Type: "float"},
			{Name: "total_ratings", Type: "int32"},
			{Name: "text_hash", Type: "string", Optional: pointer.True()},
			{Name: "embedding_version", Type: "string", Optional: pointer.True()},
			{Name: "last_synced_at", Type: "int64"},
			{Name: "embedding", Type: "float[]", NumDim: pointer.Int(dims)},
		},
		DefaultSortingField: pointer.String("last_synced_at"),
	}
}

// EnsureCollection creates the hotel collection when it does not exist yet.
func (c *Client) EnsureCollection(ctx context.Context, collection string, dims int) error {
	if _, err := c.client.Collection(collection).Retrieve(ctx); err == nil {
		return nil
	}

	if _, err := c.client.Collections().Create(ctx, HotelSchema(collection, dims)); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	log.Info().Str("collection", collection).Int("dims", dims).Msg("created typesense collection")
	return nil
}

// DropCollection deletes the collection, ignoring a missing one.
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	if _, err := c.client.Collection(collection).Retrieve(ctx); err != nil {
		return nil
	}
	_, err := c.client.Collection(collection).Delete(ctx)
	return err
}
