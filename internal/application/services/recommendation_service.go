package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/repositories"
	"github.com/nahid2887/today/internal/infrastructure/observability"
	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/nahid2887/today/pkg/keylock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Degradations reported in response metadata.
const (
	DegradedSearchUnavailable = "search_unavailable"
	DegradedIndexUnsynced     = "index_unsynced"
	DegradedRetrievalEmpty    = "retrieval_empty"
	DegradedHydrationPartial  = "hydration_partial"
	DegradedInsufficient      = "insufficient_results"
	DegradedTemplateResponse  = "template_response"
)

const emptyQueryResponse = "Tell me where you'd like to stay and what matters to you, for example \"hotels in Sydney under $200 with a pool\"."

// RecommendationService is the pipeline entry point: interpret, search,
// rank, hydrate, render, then record the turn in the session.
type RecommendationService struct {
	interpreter *QueryInterpreterService
	search      *SearchService
	ranking     *RankingService
	hydration   *HydrationService
	response    *ResponseService
	sessions    repositories.SessionStore
	locks       *keylock.Locker
	logger      zerolog.Logger
	metrics     *observability.Metrics
	unsynced    func(context.Context) bool
	onUnsynced  func()
	window      int
	now         func() time.Time
}

// NewRecommendationService wires the pipeline nodes. window is the session
// history length used for ephemeral sessions.
func NewRecommendationService(
	interpreter *QueryInterpreterService,
	search *SearchService,
	ranking *RankingService,
	hydration *HydrationService,
	response *ResponseService,
	sessions repositories.SessionStore,
	window int,
	logger zerolog.Logger,
) *RecommendationService {
	return &RecommendationService{
		interpreter: interpreter,
		search:      search,
		ranking:     ranking,
		hydration:   hydration,
		response:    response,
		sessions:    sessions,
		locks:       keylock.New(),
		logger:      logger,
		window:      window,
		now:         time.Now,
	}
}

// SetMetrics sets the metrics sink.
func (s *RecommendationService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// SetIndexMonitor installs the check used when retrieval comes back empty and
// the callback fired when the index turns out to be unsynced. The callback
// must not block; the corrective sync runs elsewhere.
func (s *RecommendationService) SetIndexMonitor(unsynced func(context.Context) bool, onUnsynced func()) {
	s.unsynced = unsynced
	s.onUnsynced = onUnsynced
}

// Recommend answers one query. It always returns a result unless session
// state is unusable, which is reported as a SESSION_INTEGRITY error.
func (s *RecommendationService) Recommend(ctx context.Context, req entities.RecommendationRequest) (*entities.RecommendationResult, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.recommend")
	defer span.End()

	requestID := uuid.NewString()
	logger := s.logger.With().Str("request_id", requestID).Str("session_id", req.SessionID).Logger()

	sessionID := strings.TrimSpace(req.SessionID)
	ephemeral := sessionID == ""
	span.SetAttributes(attribute.Bool("session.ephemeral", ephemeral))

	var session *entities.SessionState
	if ephemeral {
		session = entities.NewSessionState("ephemeral-"+requestID, s.now())
	} else {
		unlock := s.locks.Lock(sessionID)
		defer unlock()

		if req.ResetSession {
			if err := s.sessions.Reset(ctx, sessionID); err != nil {
				return nil, asSessionIntegrity("failed to reset session", err)
			}
		}
		loaded, err := s.sessions.GetOrCreate(ctx, sessionID)
		if err != nil {
			return nil, asSessionIntegrity("failed to load session", err)
		}
		session = loaded
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return s.result(session, ephemeral, entities.QueryContext{QueryType: entities.QueryTypeGeneral},
			emptyQueryResponse, nil, entities.ResponseMetadata{ResponseSource: entities.ResponseSourceTemplate}), nil
	}

	shown := session.ShownHotelIDs
	meta := entities.ResponseMetadata{Hydration: make(map[entities.HydrationStatus]int)}

	start := time.Now()
	qc := s.interpreter.Interpret(query, session)
	observability.RecordStage(ctx, s.metrics, "interpret", time.Since(start))
	span.SetAttributes(
		attribute.String("query.type", string(qc.QueryType)),
		attribute.Bool("query.refinement", qc.IsRefinement),
	)

	outcome, err := s.search.Search(ctx, qc, shown)
	meta.SearchScope = outcome.Scope
	if err != nil {
		logger.Warn().Err(err).Msg("search unavailable, answering without candidates")
		meta.Degradations = append(meta.Degradations, DegradedSearchUnavailable)
	}
	if len(outcome.Candidates) == 0 && err == nil && s.unsynced != nil && s.unsynced(ctx) {
		logger.Warn().Err(apperrors.NewIndexUnsyncedError("embedding index is empty")).Msg("requesting corrective sync")
		meta.Degradations = append(meta.Degradations, DegradedIndexUnsynced)
		if s.onUnsynced != nil {
			s.onUnsynced()
		}
	}

	start = time.Now()
	ordered := s.ranking.Order(outcome.Candidates, shown)
	observability.RecordStage(ctx, s.metrics, "rank", time.Since(start))
	meta.TotalFound = len(ordered)

	hydrated := s.hydration.Fill(ctx, ordered, qc.Filters, s.ranking.TopK())
	for status, n := range hydrated.Counts {
		meta.Hydration[status] = n
	}
	if hydrated.Counts[entities.HydrationStale] > 0 || hydrated.Counts[entities.HydrationFailed] > 0 {
		logger.Warn().
			Err(apperrors.NewHydrationPartialError("some candidates were not live-priced")).
			Int("stale", hydrated.Counts[entities.HydrationStale]).
			Int("failed", hydrated.Counts[entities.HydrationFailed]).
			Msg("degrading hydration")
		meta.Degradations = append(meta.Degradations, DegradedHydrationPartial)
	}
	if len(hydrated.Hotels) == 0 {
		logger.Info().Err(apperrors.NewRetrievalEmptyError("no candidates survived")).Msg("answering with no results")
		meta.Degradations = append(meta.Degradations, DegradedRetrievalEmpty)
	} else if hydrated.Insufficient && hydrated.Dropped > 0 {
		meta.Degradations = append(meta.Degradations, DegradedInsufficient)
	}

	meta.UnmatchedAmenities = unmatchedAmenities(qc.Filters.Amenities, hydrated.Hotels)

	text, source := s.response.Render(ctx, RenderInput{
		Query:              qc,
		Hotels:             hydrated.Hotels,
		History:            session.History,
		UnmatchedAmenities: meta.UnmatchedAmenities,
	})
	meta.ResponseSource = source
	if source == entities.ResponseSourceTemplate {
		meta.Degradations = append(meta.Degradations, DegradedTemplateResponse)
	}

	turn := entities.TurnUpdate{
		Query:    query,
		Response: text,
		Hydrated: hydrated.Hotels,
		Filters:  qc.Filters,
	}
	if ephemeral {
		session.ApplyTurn(turn, s.window, s.now())
	} else {
		updated, err := s.sessions.Update(ctx, sessionID, turn)
		if err != nil {
			return nil, asSessionIntegrity("failed to save session", err)
		}
		session = updated
	}

	logger.Info().
		Str("query_type", string(qc.QueryType)).
		Str("scope", string(meta.SearchScope)).
		Str("source", string(source)).
		Int("found", meta.TotalFound).
		Int("recommended", len(hydrated.Hotels)).
		Strs("degradations", meta.Degradations).
		Msg("recommendation served")

	return s.result(session, ephemeral, qc, text, hydrated.Hotels, meta), nil
}

// ResetSession clears a session's history, shown ids and last results.
func (s *RecommendationService) ResetSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return apperrors.NewValidationError("session id is required")
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	if err := s.sessions.Reset(ctx, sessionID); err != nil {
		return asSessionIntegrity("failed to reset session", err)
	}
	return nil
}

func (s *RecommendationService) result(
	session *entities.SessionState,
	ephemeral bool,
	qc entities.QueryContext,
	text string,
	hotels []entities.HydratedHotel,
	meta entities.ResponseMetadata,
) *entities.RecommendationResult {
	if hotels == nil {
		hotels = []entities.HydratedHotel{}
	}
	lastHotels := session.LastResults
	if lastHotels == nil {
		lastHotels = []entities.HydratedHotel{}
	}
	if meta.Hydration == nil {
		meta.Hydration = make(map[entities.HydrationStatus]int)
	}
	meta.QueryType = qc.QueryType
	meta.FiltersApplied = qc.Filters
	meta.IsRefinement = qc.IsRefinement
	if !ephemeral {
		meta.SessionID = session.SessionID
	}
	return &entities.RecommendationResult{
		NaturalLanguageResponse: text,
		RecommendedHotels:       hotels,
		ShownHotelIDs:           session.ShownHotelIDs.Sorted(),
		LastHotels:              lastHotels,
		Metadata:                meta,
		Status:                  entities.StatusSuccess,
	}
}

// unmatchedAmenities lists requested amenities that no recommended hotel offers.
func unmatchedAmenities(requested []string, hotels []entities.HydratedHotel) []string {
	if len(hotels) == 0 {
		return nil
	}
	var missing []string
	for _, amenity := range requested {
		found := false
		for _, h := range hotels {
			if HotelProvidesAmenity(h.Hotel, amenity) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, amenity)
		}
	}
	return missing
}

func asSessionIntegrity(message string, err error) error {
	if apperrors.IsSessionIntegrity(err) {
		return err
	}
	return apperrors.NewSessionIntegrityError(message, err)
}
