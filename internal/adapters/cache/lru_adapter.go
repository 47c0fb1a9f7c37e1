package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nahid2887/today/internal/domain/providers"
)

// LRUAdapter is an in-process CacheProvider bounded by entry count. Every
// entry shares the TTL given at construction; per-call expirations shorter
// than it are honoured on read.
type LRUAdapter struct {
	cache *expirable.LRU[string, lruItem]
	now   func() time.Time
}

type lruItem struct {
	value     []byte
	expiresAt time.Time
}

// NewLRUAdapter creates a cache holding at most size entries for up to ttl.
func NewLRUAdapter(size int, ttl time.Duration) *LRUAdapter {
	if size <= 0 {
		size = 1024
	}
	return &LRUAdapter{
		cache: expirable.NewLRU[string, lruItem](size, nil, ttl),
		now:   time.Now,
	}
}

var _ providers.CacheProvider = (*LRUAdapter)(nil)

// Get implements providers.CacheProvider.
func (a *LRUAdapter) Get(_ context.Context, key string) ([]byte, error) {
	item, ok := a.cache.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && a.now().After(item.expiresAt) {
		a.cache.Remove(key)
		return nil, providers.ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

// Set implements providers.CacheProvider.
func (a *LRUAdapter) Set(_ context.Context, key string, value []byte, expirationSeconds int) error {
	item := lruItem{value: append([]byte(nil), value...)}
	if expirationSeconds > 0 {
		item.expiresAt = a.now().Add(time.Duration(expirationSeconds) * time.Second)
	}
	a.cache.Add(key, item)
	return nil
}

// Delete implements providers.CacheProvider.
func (a *LRUAdapter) Delete(_ context.Context, key string) error {
	a.cache.Remove(key)
	return nil
}

// Exists implements providers.CacheProvider.
func (a *LRUAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.Get(ctx, key)
	return err == nil, nil
}
