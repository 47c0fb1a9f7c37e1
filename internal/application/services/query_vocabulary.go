package services

import (
	"regexp"
	"strings"

	"github.com/nahid2887/today/internal/domain/entities"
)

// DefaultKnownCities seeds the city vocabulary before the index reports its own.
var DefaultKnownCities = []string{
	"New York", "Los Angeles", "Chicago", "Houston", "Phoenix", "Philadelphia",
	"San Antonio", "San Diego", "Dallas", "San Jose", "Miami", "Miami Beach",
	"Boston", "Seattle", "Denver", "Portland", "Nashville", "San Francisco",
	"Minneapolis", "Aspen", "Napa Valley", "New Orleans", "Las Vegas", "Orlando",
	"Atlanta", "Austin", "Charlotte", "Detroit", "Honolulu", "Dhaka", "Mumbai",
	"Delhi", "Bangalore", "Sydney", "Melbourne", "Brisbane", "Perth", "Adelaide",
	"Gold Coast", "Cairns", "Hobart", "Darwin", "Canberra", "London", "Paris",
	"Tokyo", "Dubai", "Singapore", "Bangkok",
}

// DefaultRefinementCues are phrases that mark a follow-up on the last results.
var DefaultRefinementCues = []string{
	"cheaper", "cheapest", "less expensive", "more affordable", "lower price",
	"pricier", "more expensive", "more luxurious", "fancier", "higher end",
	"better rated", "higher rated", "better rating", "better reviews", "better ones",
	"more options", "other options", "different ones", "something else",
	"anything else", "another", "instead", "show more", "more like",
	"those", "these", "them",
}

var (
	cheaperCues     = []string{"cheaper", "cheapest", "less expensive", "more affordable", "lower price"}
	pricierCues     = []string{"pricier", "more expensive", "more luxurious", "fancier", "higher end", "upscale"}
	betterRatedCues = []string{"better rated", "higher rated", "better rating", "better reviews", "better ones", "best rated", "better"}
)

// amenityVocabulary maps a canonical amenity to the phrases that request it.
var amenityVocabulary = []struct {
	canonical string
	synonyms  []string
}{
	{"pool", []string{"pool", "swimming pool", "pool access"}},
	{"wifi", []string{"wifi", "wi-fi", "internet", "free wifi"}},
	{"gym", []string{"gym", "fitness", "fitness center", "workout"}},
	{"spa", []string{"spa", "massage", "wellness"}},
	{"parking", []string{"parking", "valet", "garage"}},
	{"restaurant", []string{"restaurant", "dining"}},
	{"bar", []string{"bar", "lounge", "pub"}},
	{"beach", []string{"beach", "beach access", "beachfront", "oceanfront"}},
	{"breakfast", []string{"breakfast", "morning meal"}},
	{"pet friendly", []string{"pet friendly", "pet-friendly", "pets", "dog friendly", "cat friendly"}},
	{"airport shuttle", []string{"airport shuttle", "airport transfer", "shuttle"}},
	{"conference", []string{"conference", "meeting room", "business center"}},
	{"kitchen", []string{"kitchen", "kitchenette", "cooking"}},
}

type amenityMatcher struct {
	canonical string
	pattern   *regexp.Regexp
}

var amenityMatchers = buildAmenityMatchers()

func buildAmenityMatchers() []amenityMatcher {
	matchers := make([]amenityMatcher, 0, len(amenityVocabulary))
	for _, entry := range amenityVocabulary {
		quoted := make([]string, len(entry.synonyms))
		for i, syn := range entry.synonyms {
			quoted[i] = regexp.QuoteMeta(syn)
		}
		matchers = append(matchers, amenityMatcher{
			canonical: entry.canonical,
			pattern:   regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}
	return matchers
}

// HotelProvidesAmenity reports whether any of the hotel's amenities satisfies
// the canonical amenity, including its synonyms.
func HotelProvidesAmenity(hotel entities.HotelDocument, amenity string) bool {
	if hotel.HasAmenity(amenity) {
		return true
	}
	for _, m := range amenityMatchers {
		if m.canonical != amenity {
			continue
		}
		for _, a := range hotel.Amenities {
			if m.pattern.MatchString(strings.ToLower(a)) {
				return true
			}
		}
	}
	return false
}

const number = `(\d+(?:\.\d+)?)`

var (
	priceBetween       = regexp.MustCompile(`between\s+(\$)?` + number + `\s*(?:and|to|-)\s*\$?` + number + `\s*(dollars|usd|bucks)?`)
	priceRange         = regexp.MustCompile(`\$` + number + `\s*-\s*\$?` + number)
	priceMax           = regexp.MustCompile(`(?:under|below|less than|cheaper than|max(?:imum)?|up to|at most|no more than)\s+(\$)?` + number + `\s*(dollars|usd|bucks)?`)
	priceOrLess        = regexp.MustCompile(`\$` + number + `\s+or\s+less`)
	priceMin           = regexp.MustCompile(`(?:over|above|more than|at least|min(?:imum)?|starting at)\s+(\$)?` + number + `\s*(dollars|usd|bucks)?`)
	priceBare          = regexp.MustCompile(`(?:\$` + number + `|` + number + `\s*(?:dollars|usd|bucks))`)
	budgetWords        = regexp.MustCompile(`\b(?:cheap|budget|affordable|economical|inexpensive)\b`)
	luxuryWords        = regexp.MustCompile(`\b(?:luxury|luxurious|upscale|premium|high end|high-end)\b`)
	ratingStar         = regexp.MustCompile(`\b([1-5](?:\.\d)?)\s*-?\s*stars?\b`)
	ratingAbove        = regexp.MustCompile(`(?:rating|rated|reviews?)\s+(?:of\s+)?(?:above|over|at least|>=?)\s*(\d(?:\.\d+)?)`)
	ratingOrMore       = regexp.MustCompile(`rated\s+(\d(?:\.\d+)?)\s+or\s+(?:higher|above|more|better)`)
	ratingPlus         = regexp.MustCompile(`(?:^|[^\d.$])(\d(?:\.\d)?)\+`)
	ratingBare         = regexp.MustCompile(`(?:above|over|at least)\s+(\d(?:\.\d+)?)(?:\s|$)`)
	ratingTop          = regexp.MustCompile(`\b(?:top|best|highest)[\s-]rated\b`)
	ratingHigh         = regexp.MustCompile(`\b(?:highly|well)[\s-]rated\b|\bgood reviews\b`)
	cityPhrase         = regexp.MustCompile(`\b(?:in|at|near|around)\s+([a-z][a-z ]*?)(?:\s+(?:with|under|below|over|above|for|that|which|and|between|near|having)\b|[,.?!]|$)`)
	thousandsSeparator = regexp.MustCompile(`(\d),(\d{3})`)
	nonQueryChars      = regexp.MustCompile(`[^\p{L}\p{N}\s\$\.\-\+']`)
)

const (
	budgetMaxPrice = 100.0
	luxuryMinPrice = 200.0
	topRatedFloor  = 4.5
	highRatedFloor = 4.0
)

var cityPhraseStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "my": {}, "this": {}, "that": {}, "town": {},
	"city": {}, "area": {}, "budget": {}, "total": {},
}

// hasPhrase reports whether phrase occurs in q on word boundaries.
func hasPhrase(q, phrase string) bool {
	padded := " " + q + " "
	return strings.Contains(padded, " "+phrase+" ")
}
