package services

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/infrastructure/observability"
	"github.com/nahid2887/today/pkg/config"
	"github.com/rs/zerolog"
)

type cityEntry struct {
	key     string
	pattern *regexp.Regexp
}

// QueryInterpreterService turns a raw query plus session context into a
// QueryContext. Interpretation is a pure function of its inputs and the
// current city vocabulary.
type QueryInterpreterService struct {
	mu         sync.RWMutex
	baseCities []string
	cities     []cityEntry // longest first
	cues       []string
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewQueryInterpreterService creates an interpreter. Empty cue or city lists
// fall back to the built-in vocabularies.
func NewQueryInterpreterService(cfg config.PipelineConfig, logger zerolog.Logger) *QueryInterpreterService {
	cues := cfg.RefinementCues
	if len(cues) == 0 {
		cues = DefaultRefinementCues
	}
	normalizedCues := make([]string, 0, len(cues))
	for _, c := range cues {
		if c = cueText(c); c != "" {
			normalizedCues = append(normalizedCues, c)
		}
	}

	base := cfg.KnownCities
	if len(base) == 0 {
		base = DefaultKnownCities
	}

	svc := &QueryInterpreterService{
		baseCities: base,
		cues:       normalizedCues,
		logger:     logger,
	}
	svc.SetIndexedCities(nil)
	return svc
}

// SetMetrics sets the metrics sink.
func (s *QueryInterpreterService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// SetIndexedCities extends the configured city vocabulary with the cities
// currently present in the index.
func (s *QueryInterpreterService) SetIndexedCities(indexed []string) {
	seen := make(map[string]struct{})
	var entries []cityEntry
	for _, list := range [][]string{s.baseCities, indexed} {
		for _, c := range list {
			key := entities.NormalizeCity(c)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, cityEntry{
				key:     key,
				pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `\b`),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].key) != len(entries[j].key) {
			return len(entries[i].key) > len(entries[j].key)
		}
		return entries[i].key < entries[j].key
	})

	s.mu.Lock()
	s.cities = entries
	s.mu.Unlock()
}

// KnownCity reports whether city is in the vocabulary.
func (s *QueryInterpreterService) KnownCity(city string) bool {
	key := entities.NormalizeCity(city)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cities {
		if c.key == key {
			return true
		}
	}
	return false
}

// Interpret classifies rawQuery. session may be nil for an ephemeral call.
func (s *QueryInterpreterService) Interpret(rawQuery string, session *entities.SessionState) entities.QueryContext {
	q := normalizeQuery(rawQuery)
	qc := entities.QueryContext{
		RawQuery:  rawQuery,
		QueryType: entities.QueryTypeGeneral,
	}
	if q == "" {
		return qc
	}

	city := s.matchCity(q)
	explicit, cues := extractFilters(q)
	explicit.City = city

	if s.isRefinement(q, city, session) {
		if cues.priceFromWords {
			// "more affordable" or "upscale" is the delta, not a stated bound
			explicit.MinPrice, explicit.MaxPrice = nil, nil
		}
		qc.IsRefinement = true
		qc.QueryType = entities.QueryTypeRefinement
		qc.Refinement = refinementKind(q)
		qc.Filters = applyRefinement(session, qc.Refinement, explicit)
		qc.SemanticQuery = strings.TrimSpace(session.LastUserQuery() + " " + semanticText(q))
		s.logger.Debug().
			Str("refinement", string(qc.Refinement)).
			Str("city", qc.Filters.City).
			Msg("query interpreted as refinement")
		return qc
	}

	qc.Filters = explicit
	qc.SemanticQuery = semanticText(q)
	if city == "" {
		qc.UnresolvedCity = unresolvedCity(q)
		if qc.UnresolvedCity != "" {
			s.recordUnresolvedCity(qc.UnresolvedCity)
		}
	}

	switch {
	case cues.price:
		qc.QueryType = entities.QueryTypeBudgetSearch
	case len(explicit.Amenities) > 0:
		qc.QueryType = entities.QueryTypeAmenitySearch
	case cues.rating:
		qc.QueryType = entities.QueryTypeQualitySearch
	case city != "":
		qc.QueryType = entities.QueryTypeLocationSearch
	}
	return qc
}

// isRefinement needs a cue and previous results. Naming a different known
// city starts a new topic.
func (s *QueryInterpreterService) isRefinement(q, city string, session *entities.SessionState) bool {
	if session == nil || len(session.LastResults) == 0 {
		return false
	}
	if city != "" && city != session.LastFilters.City {
		return false
	}
	text := cueText(q)
	for _, cue := range s.cues {
		if hasPhrase(text, cue) {
			return true
		}
	}
	return false
}

func (s *QueryInterpreterService) matchCity(q string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cities {
		if c.pattern.MatchString(q) {
			return c.key
		}
	}
	return ""
}

func (s *QueryInterpreterService) recordUnresolvedCity(city string) {
	s.logger.Info().Str("city", city).Msg("city not in vocabulary, searching globally")
	observability.RecordUnresolvedCity(context.Background(), s.metrics, city)
}

type filterCues struct {
	price          bool
	priceFromWords bool
	rating         bool
}

// extractFilters pulls price bounds, amenities and a rating floor out of q.
func extractFilters(q string) (entities.QueryFilters, filterCues) {
	var f entities.QueryFilters
	var cues filterCues

	f.MinPrice, f.MaxPrice, cues.priceFromWords = extractPrice(q)
	if f.MinPrice != nil || f.MaxPrice != nil {
		cues.price = true
	}

	for _, m := range amenityMatchers {
		if m.pattern.MatchString(q) {
			f.Amenities = append(f.Amenities, m.canonical)
		}
	}

	if rating := extractRating(q); rating != nil {
		f.MinRating = rating
		cues.rating = true
	}
	return f, cues
}

// extractPrice returns the stated bounds. fromWords is set when the only
// bounds came from budget or luxury words.
func extractPrice(q string) (min, max *float64, fromWords bool) {
	if m := priceBetween.FindStringSubmatch(q); m != nil {
		lo, hi := parseNumber(m[2]), parseNumber(m[3])
		if m[1] != "" || m[4] != "" || hi > 5 {
			if lo > hi {
				lo, hi = hi, lo
			}
			return entities.Float64(lo), entities.Float64(hi), false
		}
	}
	if m := priceRange.FindStringSubmatch(q); m != nil {
		lo, hi := parseNumber(m[1]), parseNumber(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		return entities.Float64(lo), entities.Float64(hi), false
	}

	if m := priceMax.FindStringSubmatch(q); m != nil && isPrice(m[1], m[2], m[3]) {
		max = entities.Float64(parseNumber(m[2]))
	} else if m := priceOrLess.FindStringSubmatch(q); m != nil {
		max = entities.Float64(parseNumber(m[1]))
	}
	if m := priceMin.FindStringSubmatch(q); m != nil && isPrice(m[1], m[2], m[3]) {
		min = entities.Float64(parseNumber(m[2]))
	}
	if min == nil && max == nil {
		if m := priceBare.FindStringSubmatch(q); m != nil {
			v := m[1]
			if v == "" {
				v = m[2]
			}
			max = entities.Float64(parseNumber(v))
		}
	}

	if min != nil || max != nil {
		return min, max, false
	}

	if budgetWords.MatchString(q) {
		max = entities.Float64(budgetMaxPrice)
	}
	if luxuryWords.MatchString(q) {
		min = entities.Float64(luxuryMinPrice)
	}
	return min, max, min != nil || max != nil
}

// isPrice separates "under $80" from "rating below 4.5": a currency marker or
// a value no rating can take.
func isPrice(dollar, value, unit string) bool {
	return dollar != "" || unit != "" || parseNumber(value) > 5
}

func extractRating(q string) *float64 {
	for _, re := range []*regexp.Regexp{ratingAbove, ratingOrMore, ratingStar, ratingPlus, ratingBare} {
		if m := re.FindStringSubmatch(q); m != nil {
			if v := parseNumber(m[1]); v > 0 && v <= 5 {
				return entities.Float64(v)
			}
		}
	}
	if ratingTop.MatchString(q) {
		return entities.Float64(topRatedFloor)
	}
	if ratingHigh.MatchString(q) {
		return entities.Float64(highRatedFloor)
	}
	return nil
}

func refinementKind(q string) entities.RefinementKind {
	text := cueText(q)
	for _, group := range []struct {
		cues []string
		kind entities.RefinementKind
	}{
		{cheaperCues, entities.RefinementCheaper},
		{pricierCues, entities.RefinementPricier},
		{betterRatedCues, entities.RefinementBetterRated},
	} {
		for _, cue := range group.cues {
			if hasPhrase(text, cue) {
				return group.kind
			}
		}
	}
	return entities.RefinementMoreOptions
}

// applyRefinement carries the previous filters and city, overlays anything
// stated explicitly in the follow-up, then narrows by kind.
func applyRefinement(session *entities.SessionState, kind entities.RefinementKind, explicit entities.QueryFilters) entities.QueryFilters {
	f := session.LastFilters.Clone()
	if explicit.City != "" {
		f.City = explicit.City
	}
	if explicit.MaxPrice != nil {
		f.MaxPrice = explicit.MaxPrice
	}
	if explicit.MinPrice != nil {
		f.MinPrice = explicit.MinPrice
	}
	if explicit.MinRating != nil {
		f.MinRating = explicit.MinRating
	}
	if len(explicit.Amenities) > 0 {
		f.Amenities = entities.NormalizeAmenities(append(f.Amenities, explicit.Amenities...))
	}

	switch kind {
	case entities.RefinementCheaper:
		if explicit.MaxPrice != nil {
			break
		}
		if lowest, ok := priceExtreme(session.LastResults, false); ok {
			f.MaxPrice = entities.Float64(math.Nextafter(lowest, math.Inf(-1)))
			if f.MinPrice != nil && *f.MinPrice > *f.MaxPrice {
				f.MinPrice = nil
			}
		}
	case entities.RefinementPricier:
		if explicit.MinPrice != nil {
			break
		}
		if highest, ok := priceExtreme(session.LastResults, true); ok {
			f.MinPrice = entities.Float64(math.Nextafter(highest, math.Inf(1)))
			if f.MaxPrice != nil && *f.MaxPrice < *f.MinPrice {
				f.MaxPrice = nil
			}
		}
	case entities.RefinementBetterRated:
		if explicit.MinRating != nil {
			break
		}
		best := 0.0
		for _, h := range session.LastResults {
			best = math.Max(best, h.Hotel.AverageRating)
		}
		if best > 0 {
			f.MinRating = entities.Float64(math.Min(5, math.Nextafter(best, math.Inf(1))))
		}
	}
	return f
}

// priceExtreme returns the highest (or lowest) known current price.
func priceExtreme(results []entities.HydratedHotel, highest bool) (float64, bool) {
	var out float64
	found := false
	for _, h := range results {
		if h.CurrentPrice == nil {
			continue
		}
		p := *h.CurrentPrice
		if !found || (highest && p > out) || (!highest && p < out) {
			out = p
			found = true
		}
	}
	return out, found
}

// semanticText strips price phrases; amenities and descriptive words stay.
func semanticText(q string) string {
	text := q
	for _, re := range []*regexp.Regexp{priceBetween, priceRange, priceMax, priceOrLess, priceMin, priceBare} {
		text = re.ReplaceAllString(text, " ")
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return q
	}
	return text
}

func unresolvedCity(q string) string {
	m := cityPhrase.FindStringSubmatch(q)
	if m == nil {
		return ""
	}
	phrase := strings.TrimSpace(m[1])
	words := strings.Fields(phrase)
	if len(words) == 0 || len(words) > 3 {
		return ""
	}
	if _, stop := cityPhraseStopwords[words[0]]; stop {
		return ""
	}
	for _, am := range amenityMatchers {
		if am.pattern.MatchString(phrase) {
			return ""
		}
	}
	return phrase
}

func normalizeQuery(raw string) string {
	q := strings.ToLower(strings.TrimSpace(raw))
	q = thousandsSeparator.ReplaceAllString(q, "$1$2")
	q = nonQueryChars.ReplaceAllString(q, " ")
	return strings.Join(strings.Fields(q), " ")
}

// cueText keeps letters, digits and spaces only, for phrase matching.
func cueText(q string) string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
