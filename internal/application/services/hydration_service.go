package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/providers"
	"github.com/nahid2887/today/internal/infrastructure/observability"
	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const lastKnownPriceKeyPrefix = "price:last_known:"

// HydrationOptions tunes the hydrate node.
type HydrationOptions struct {
	// Timeout bounds each live-pricing call.
	Timeout time.Duration
	// Concurrency caps in-flight pricing calls.
	Concurrency int
	// LastKnownTTL is how long a fetched price may stand in for a failed call.
	LastKnownTTL time.Duration
	// MaxPromotionRounds bounds refills after candidates are dropped.
	MaxPromotionRounds int
}

// HydrationResult is the outcome of filling top-K with live-priced hotels.
type HydrationResult struct {
	Hotels       []entities.HydratedHotel
	Counts       map[entities.HydrationStatus]int
	Dropped      int
	Rounds       int
	Insufficient bool
}

// HydrationService enriches ranked candidates with live price data.
type HydrationService struct {
	pricing   providers.PricingProvider
	lastKnown providers.CacheProvider
	opts      HydrationOptions
	logger    zerolog.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewHydrationService creates a hydrate node. lastKnown may be nil.
func NewHydrationService(pricing providers.PricingProvider, lastKnown providers.CacheProvider, opts HydrationOptions, logger zerolog.Logger) *HydrationService {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.MaxPromotionRounds < 0 {
		opts.MaxPromotionRounds = 0
	}
	return &HydrationService{
		pricing:   pricing,
		lastKnown: lastKnown,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// SetMetrics sets the metrics sink.
func (s *HydrationService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// candidateOutcome is one hydration attempt. keep is false when the
// candidate must not be shown.
type candidateOutcome struct {
	hotel  entities.HydratedHotel
	status entities.HydrationStatus
	keep   bool
	reason string
}

// Fill hydrates candidates in rank order until topK survive. Dropped
// candidates are replaced by the next-best ones for at most
// MaxPromotionRounds extra rounds.
func (s *HydrationService) Fill(ctx context.Context, ordered []entities.RankedHotel, filters entities.QueryFilters, topK int) HydrationResult {
	ctx, span := observability.StartSpan(ctx, "pipeline.hydrate")
	defer span.End()
	start := time.Now()

	result := HydrationResult{Counts: make(map[entities.HydrationStatus]int)}
	next := 0
	for round := 0; round <= s.opts.MaxPromotionRounds; round++ {
		need := topK - len(result.Hotels)
		if need <= 0 || next >= len(ordered) {
			break
		}
		end := next + need
		if end > len(ordered) {
			end = len(ordered)
		}
		batch := ordered[next:end]
		next = end
		result.Rounds++

		for _, out := range s.hydrateBatch(ctx, batch, filters) {
			result.Counts[out.status]++
			if out.keep {
				result.Hotels = append(result.Hotels, out.hotel)
				continue
			}
			result.Dropped++
			s.logger.Debug().Str("hotel_id", out.hotel.HotelID).Str("reason", out.reason).Msg("candidate dropped after hydration")
		}
	}
	result.Insufficient = len(result.Hotels) < topK

	for status, n := range result.Counts {
		observability.RecordHydration(ctx, s.metrics, string(status), n)
	}
	observability.RecordStage(ctx, s.metrics, "hydrate", time.Since(start))
	span.SetAttributes(
		attribute.Int("hydration.rounds", result.Rounds),
		attribute.Int("hydration.dropped", result.Dropped),
	)
	return result
}

// Hydrate prices ranked in one concurrent batch and returns every candidate
// in input order. Candidates that would be dropped carry status failed, or ok
// when only the price filter rejected them.
func (s *HydrationService) Hydrate(ctx context.Context, ranked []entities.RankedHotel, filters entities.QueryFilters) []entities.HydratedHotel {
	outcomes := s.hydrateBatch(ctx, ranked, filters)
	hotels := make([]entities.HydratedHotel, len(outcomes))
	for i, out := range outcomes {
		hotels[i] = out.hotel
	}
	return hotels
}

// hydrateBatch prices every candidate concurrently; total latency is bounded
// by the slowest single call, which is bounded by the timeout.
func (s *HydrationService) hydrateBatch(ctx context.Context, ranked []entities.RankedHotel, filters entities.QueryFilters) []candidateOutcome {
	outcomes := make([]candidateOutcome, len(ranked))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, r := range ranked {
		g.Go(func() error {
			outcomes[i] = s.hydrateOne(ctx, r, filters)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *HydrationService) hydrateOne(ctx context.Context, ranked entities.RankedHotel, filters entities.QueryFilters) candidateOutcome {
	hotel := entities.HydratedHotel{RankedHotel: ranked, ActiveOffers: []entities.Offer{}}

	price, err := s.fetch(ctx, ranked.HotelID)
	now := s.now()

	switch {
	case err == nil:
		s.applyPrice(&hotel, price, now)
		hotel.HydrationStatus = entities.HydrationOK
		s.remember(ctx, price)
		if filters.HasPriceFilter() && !filters.AcceptsPrice(price.Price) {
			return candidateOutcome{hotel: hotel, status: entities.HydrationFiltered, reason: "price_filter"}
		}
		return candidateOutcome{hotel: hotel, status: entities.HydrationOK, keep: true}

	case apperrors.IsNotFound(err):
		hotel.HydrationStatus = entities.HydrationFailed
		return candidateOutcome{hotel: hotel, status: entities.HydrationFailed, reason: "not_found"}
	}

	s.logger.Warn().Err(err).Str("hotel_id", ranked.HotelID).Msg("live price unavailable")
	if filters.HasPriceFilter() {
		hotel.HydrationStatus = entities.HydrationFailed
		return candidateOutcome{hotel: hotel, status: entities.HydrationFailed, reason: "price_unverifiable"}
	}

	hotel.HydrationStatus = entities.HydrationStale
	if cached, ok := s.recall(ctx, ranked.HotelID); ok {
		s.applyPrice(&hotel, cached, now)
	}
	return candidateOutcome{hotel: hotel, status: entities.HydrationStale, keep: true}
}

// fetch bounds the call by the timeout even if the provider ignores ctx.
func (s *HydrationService) fetch(ctx context.Context, hotelID string) (*entities.LivePrice, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	type answer struct {
		price *entities.LivePrice
		err   error
	}
	ch := make(chan answer, 1)
	go func() {
		p, err := s.pricing.GetLivePrice(callCtx, hotelID)
		ch <- answer{price: p, err: err}
	}()

	select {
	case a := <-ch:
		if a.err == nil && a.price == nil {
			return nil, apperrors.NewNotFoundError("hotel " + hotelID + " has no live price")
		}
		return a.price, a.err
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}

func (s *HydrationService) applyPrice(hotel *entities.HydratedHotel, price *entities.LivePrice, now time.Time) {
	hotel.CurrentPrice = entities.Float64(price.Price)
	hotel.Currency = price.Currency
	hotel.CommissionRate = price.CommissionRate
	hotel.ActiveOffers = price.ActiveOffers(now)
	if hotel.ActiveOffers == nil {
		hotel.ActiveOffers = []entities.Offer{}
	}
	hotel.BestOfferPrice = bestOfferPrice(price.Price, hotel.ActiveOffers)
	asOf := price.FetchedAt
	if asOf.IsZero() {
		asOf = now
	}
	hotel.PriceAsOf = &asOf
}

// bestOfferPrice applies the largest active discount, or returns nil.
func bestOfferPrice(price float64, offers []entities.Offer) *float64 {
	best := 0.0
	for _, o := range offers {
		if o.DiscountPercentage > best {
			best = o.DiscountPercentage
		}
	}
	if best <= 0 {
		return nil
	}
	if best > 100 {
		best = 100
	}
	return entities.Float64(price * (1 - best/100))
}

func (s *HydrationService) remember(ctx context.Context, price *entities.LivePrice) {
	if s.lastKnown == nil {
		return
	}
	data, err := json.Marshal(price)
	if err != nil {
		return
	}
	if err := s.lastKnown.Set(ctx, lastKnownPriceKeyPrefix+price.HotelID, data, int(s.opts.LastKnownTTL.Seconds())); err != nil {
		s.logger.Warn().Err(err).Str("hotel_id", price.HotelID).Msg("failed to store last-known price")
	}
}

func (s *HydrationService) recall(ctx context.Context, hotelID string) (*entities.LivePrice, bool) {
	if s.lastKnown == nil {
		return nil, false
	}
	data, err := s.lastKnown.Get(ctx, lastKnownPriceKeyPrefix+hotelID)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("hotel_id", hotelID).Msg("last-known price lookup failed")
		}
		observability.RecordCacheMiss(ctx, s.metrics, "last_known_price")
		return nil, false
	}
	var price entities.LivePrice
	if err := json.Unmarshal(data, &price); err != nil {
		return nil, false
	}
	observability.RecordCacheHit(ctx, s.metrics, "last_known_price")
	return &price, true
}
