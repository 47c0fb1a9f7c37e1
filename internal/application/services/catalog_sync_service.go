package services

import (
	"context"
	"sync"
	"time"

	"github.com/nahid2887/today/internal/domain/providers"
	"github.com/nahid2887/today/internal/domain/repositories"
	"github.com/nahid2887/today/internal/infrastructure/observability"
	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// SyncReport summarizes one catalog sync run.
type SyncReport struct {
	Full       bool       `json:"full"`
	Since      *time.Time `json:"since,omitempty"`
	Fetched    int        `json:"fetched"`
	Upserted   int        `json:"upserted"`
	Failed     int        `json:"failed"`
	Removed    int        `json:"removed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// CatalogStatus is what operators see about the index and the last sync.
type CatalogStatus struct {
	Running   bool                    `json:"running"`
	LastSync  *SyncReport             `json:"last_sync,omitempty"`
	LastError string                  `json:"last_error,omitempty"`
	Index     repositories.IndexStats `json:"index"`
}

// CatalogSyncService pulls the catalog feed into the embedding index. Runs
// are serialized; searches proceed while a run is upserting.
type CatalogSyncService struct {
	feed   providers.CatalogFeed
	index  repositories.HotelIndex
	logger zerolog.Logger
	now    func() time.Time

	run sync.Mutex

	mu        sync.RWMutex
	running   bool
	last      *SyncReport
	lastErr   string
	listeners []func(repositories.IndexStats)
}

// NewCatalogSyncService creates a sync service.
func NewCatalogSyncService(feed providers.CatalogFeed, index repositories.HotelIndex, logger zerolog.Logger) *CatalogSyncService {
	return &CatalogSyncService{
		feed:   feed,
		index:  index,
		logger: logger,
		now:    time.Now,
	}
}

// OnSynced registers fn to receive index stats after every successful run.
func (s *CatalogSyncService) OnSynced(fn func(repositories.IndexStats)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Sync waits for any running sync, then pulls hotels changed after since
// (all hotels when since is nil) and returns the number upserted.
func (s *CatalogSyncService) Sync(ctx context.Context, since *time.Time) (int, error) {
	s.run.Lock()
	defer s.run.Unlock()
	report, err := s.syncLocked(ctx, since)
	return report.Upserted, err
}

// TrySync is Sync for callers that must not queue: it returns a CONFLICT
// error when a run is already in progress.
func (s *CatalogSyncService) TrySync(ctx context.Context, since *time.Time) (SyncReport, error) {
	if !s.run.TryLock() {
		return SyncReport{}, apperrors.NewConflictError("catalog sync already running")
	}
	defer s.run.Unlock()
	return s.syncLocked(ctx, since)
}

func (s *CatalogSyncService) syncLocked(ctx context.Context, since *time.Time) (SyncReport, error) {
	ctx, span := observability.StartSpan(ctx, "catalog.sync")
	defer span.End()

	report := SyncReport{Full: since == nil, Since: since, StartedAt: s.now()}
	s.setRunning(true)
	defer s.setRunning(false)

	hotels, err := s.feed.FetchHotels(ctx, since)
	if err != nil {
		observability.RecordError(span, err)
		s.finish(&report, err)
		return report, apperrors.NewExternalError("catalog feed unavailable", err)
	}
	report.Fetched = len(hotels)

	seen := make(map[string]struct{}, len(hotels))
	for _, h := range hotels {
		if err := ctx.Err(); err != nil {
			s.finish(&report, err)
			return report, err
		}
		h.Normalize()
		if h.ID == "" {
			report.Failed++
			continue
		}
		if _, dup := seen[h.ID]; dup {
			continue
		}
		seen[h.ID] = struct{}{}
		h.LastSyncedAt = s.now()
		if err := s.index.Upsert(ctx, h); err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Str("hotel_id", h.ID).Msg("failed to index hotel")
			continue
		}
		report.Upserted++
	}

	if report.Full {
		removed, err := s.evict(ctx, seen)
		report.Removed = removed
		if err != nil {
			s.logger.Warn().Err(err).Msg("eviction of stale hotels failed")
		}
	}

	span.SetAttributes(
		attribute.Int("sync.upserted", report.Upserted),
		attribute.Int("sync.removed", report.Removed),
		attribute.Int("sync.failed", report.Failed),
	)
	s.finish(&report, nil)
	s.logger.Info().
		Bool("full", report.Full).
		Int("fetched", report.Fetched).
		Int("upserted", report.Upserted).
		Int("removed", report.Removed).
		Int("failed", report.Failed).
		Msg("catalog sync finished")

	s.notify(ctx)
	return report, nil
}

// evict removes indexed hotels absent from a full feed. An empty feed is
// treated as an outage and evicts nothing.
func (s *CatalogSyncService) evict(ctx context.Context, keep map[string]struct{}) (int, error) {
	if len(keep) == 0 {
		s.logger.Warn().Msg("full sync returned no hotels, skipping eviction")
		return 0, nil
	}
	ids, err := s.index.IDs(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := s.index.Remove(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("hotel_id", id).Msg("failed to evict hotel")
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *CatalogSyncService) notify(ctx context.Context) {
	s.mu.RLock()
	listeners := append([]func(repositories.IndexStats){}, s.listeners...)
	s.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	stats, err := s.index.Stats(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read index stats after sync")
		return
	}
	for _, fn := range listeners {
		fn(stats)
	}
}

func (s *CatalogSyncService) setRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
}

func (s *CatalogSyncService) finish(report *SyncReport, err error) {
	report.FinishedAt = s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err.Error()
		return
	}
	s.lastErr = ""
	last := *report
	s.last = &last
}

// Status reports the last run and the current index contents.
func (s *CatalogSyncService) Status(ctx context.Context) (CatalogStatus, error) {
	s.mu.RLock()
	status := CatalogStatus{Running: s.running, LastError: s.lastErr}
	if s.last != nil {
		last := *s.last
		status.LastSync = &last
	}
	s.mu.RUnlock()

	stats, err := s.index.Stats(ctx)
	if err != nil {
		return status, apperrors.NewExternalError("index stats unavailable", err)
	}
	status.Index = stats
	return status, nil
}

// Unsynced reports whether the index holds no documents.
func (s *CatalogSyncService) Unsynced(ctx context.Context) bool {
	stats, err := s.index.Stats(ctx)
	return err != nil || stats.Documents == 0
}
