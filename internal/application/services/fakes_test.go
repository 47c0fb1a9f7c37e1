package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nahid2887/today/internal/adapters/embedding"
	"github.com/nahid2887/today/internal/adapters/search"
	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/providers"
	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakePricing answers from a price table. Hotels listed in hang ignore
// cancellation and answer only after release.
type fakePricing struct {
	mu       sync.Mutex
	unblock  chan struct{}
	once     sync.Once
	prices   map[string]float64
	offers   map[string][]entities.Offer
	fail     map[string]error
	hang     map[string]bool
	delay    time.Duration
	calls    int32
	inFlight int32
	peak     int32
}

func newFakePricing(prices map[string]float64) *fakePricing {
	return &fakePricing{
		prices:  prices,
		offers:  make(map[string][]entities.Offer),
		fail:    make(map[string]error),
		hang:    make(map[string]bool),
		unblock: make(chan struct{}),
	}
}

func (f *fakePricing) release() {
	f.once.Do(func() { close(f.unblock) })
}

func (f *fakePricing) GetLivePrice(ctx context.Context, hotelID string) (*entities.LivePrice, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}

	f.mu.Lock()
	hang := f.hang[hotelID]
	err := f.fail[hotelID]
	price, ok := f.prices[hotelID]
	offers := f.offers[hotelID]
	delay := f.delay
	f.mu.Unlock()

	if hang {
		<-f.unblock
		return nil, errProviderDown
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNotFoundError("hotel " + hotelID)
	}
	return &entities.LivePrice{
		HotelID:   hotelID,
		Price:     price,
		Currency:  "USD",
		Offers:    offers,
		FetchedAt: time.Now(),
	}, nil
}

func (f *fakePricing) setFail(id string, err error) {
	f.mu.Lock()
	f.fail[id] = err
	f.mu.Unlock()
}

// fakeLLM returns a fixed answer or error.
type fakeLLM struct {
	name  string
	text  string
	err   error
	hang  bool
	calls int32
	last  providers.LLMRequest
	mu    sync.Mutex
}

func (f *fakeLLM) Name() string { return f.name }

func (f *fakeLLM) Complete(ctx context.Context, req providers.LLMRequest) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

var errProviderDown = errors.New("provider down")

// fakeFeed serves a fixed catalog.
type fakeFeed struct {
	mu     sync.Mutex
	hotels []entities.HotelDocument
	err    error
	block  chan struct{}
	since  []*time.Time
}

func (f *fakeFeed) FetchHotels(ctx context.Context, since *time.Time) ([]entities.HotelDocument, error) {
	f.mu.Lock()
	f.since = append(f.since, since)
	block := f.block
	hotels := append([]entities.HotelDocument(nil), f.hotels...)
	err := f.err
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return hotels, err
}

func hotel(id, name, city string, rating float64, reviews int, amenities ...string) entities.HotelDocument {
	return entities.HotelDocument{
		ID:            id,
		Name:          name,
		City:          city,
		Country:       "Australia",
		Description:   "Comfortable rooms close to the centre",
		Amenities:     amenities,
		AverageRating: rating,
		TotalRatings:  reviews,
	}
}

// fixtureCatalog has six Sydney hotels (pricier ones rated far higher),
// four in Melbourne and four elsewhere.
func fixtureCatalog() []entities.HotelDocument {
	return []entities.HotelDocument{
		hotel("1", "Harbour Grand", "Sydney", 5.0, 900, "pool", "spa"),
		hotel("2", "Opera View", "Sydney", 4.9, 700, "wifi", "bar"),
		hotel("3", "Bondi Crest", "Sydney", 4.8, 500, "beach", "wifi"),
		hotel("4", "Central Lodge", "Sydney", 2.5, 80, "wifi"),
		hotel("5", "Backpacker Rest", "Sydney", 2.0, 40, "wifi"),
		hotel("6", "Old Mill Inn", "Sydney", 1.5, 10, "parking"),
		hotel("7", "Yarra House", "Melbourne", 4.6, 300, "gym"),
		hotel("8", "Laneway Suites", "Melbourne", 4.4, 250, "wifi"),
		hotel("9", "Tram Stop Hotel", "Melbourne", 4.1, 120, "parking"),
		hotel("10", "Southbank Tower", "Melbourne", 4.5, 410, "pool"),
		hotel("11", "River Quay", "Brisbane", 4.3, 220, "pool"),
		hotel("12", "Swan Point", "Perth", 4.2, 150, "beach"),
		hotel("13", "Festival Rooms", "Adelaide", 3.9, 90, "wifi"),
		hotel("14", "Salamanca Stay", "Hobart", 4.0, 60, "breakfast"),
	}
}

func fixturePrices() map[string]float64 {
	return map[string]float64{
		"1": 300, "2": 250, "3": 220, "4": 120, "5": 90, "6": 500,
		"7": 180, "8": 160, "9": 110, "10": 210,
		"11": 140, "12": 130, "13": 95, "14": 150,
	}
}

func newFixtureIndex(t *testing.T) *search.MemoryIndex {
	t.Helper()
	idx := search.NewMemoryIndex(embedding.NewHashingEmbedder(256))
	for _, h := range fixtureCatalog() {
		require.NoError(t, idx.Upsert(context.Background(), h))
	}
	return idx
}

func idsOf(hotels []entities.HydratedHotel) []string {
	ids := make([]string, len(hotels))
	for i, h := range hotels {
		ids[i] = h.HotelID
	}
	return ids
}

func newFixtureIndexEmpty() *search.MemoryIndex {
	return search.NewMemoryIndex(embedding.NewHashingEmbedder(256))
}
