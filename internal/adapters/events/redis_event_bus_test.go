package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/providers"
)

func newBus(t *testing.T) *RedisEventBus {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bus := NewRedisEventBus(client, zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func receive(t *testing.T, ch <-chan *entities.CatalogEvent) *entities.CatalogEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestRedisEventBus_PublishReachesEverySubscriber(t *testing.T) {
	bus := newBus(t)
	ctx := context.Background()

	first, err := bus.Subscribe(ctx, providers.EventChannelCatalog)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx, providers.EventChannelCatalog)
	require.NoError(t, err)

	event := entities.NewCatalogSyncedEvent("indexer-1", 14, []string{"melbourne", "sydney"}, "hashing-v1-256")
	require.NoError(t, bus.Publish(ctx, providers.EventChannelCatalog, event))

	for _, ch := range []<-chan *entities.CatalogEvent{first, second} {
		got := receive(t, ch)
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, entities.CatalogEventSynced, got.Type)
		assert.Equal(t, "indexer-1", got.Origin)
		assert.Equal(t, []string{"melbourne", "sydney"}, got.Cities)
		assert.Equal(t, 14, got.Documents)
	}
}

func TestRedisEventBus_CancelClosesSubscriber(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, providers.EventChannelCatalog)
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	bus.mu.RLock()
	defer bus.mu.RUnlock()
	assert.Empty(t, bus.subscriptions)
}

func TestRedisEventBus_OtherChannelsIgnored(t *testing.T) {
	bus := newBus(t)
	ctx := context.Background()

	ch, err := bus.Subscribe(ctx, providers.EventChannelCatalog)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "other", entities.NewCatalogSyncedEvent("x", 1, nil, "")))
	want := entities.NewCatalogSyncedEvent("y", 2, nil, "")
	require.NoError(t, bus.Publish(ctx, providers.EventChannelCatalog, want))

	assert.Equal(t, want.ID, receive(t, ch).ID)
}
