package services

import (
	"fmt"
	"strings"

	"github.com/nahid2887/today/internal/domain/entities"
)

type phrases struct {
	intro   string
	noMatch string
}

// phraseBank is keyed by query type. %s is replaced with the place phrase.
var phraseBank = map[entities.QueryType]phrases{
	entities.QueryTypeLocationSearch: {
		intro:   "Here are the hotels I recommend%s:",
		noMatch: "I couldn't find any hotels%s right now.",
	},
	entities.QueryTypeBudgetSearch: {
		intro:   "These hotels%s fit your budget:",
		noMatch: "I couldn't find hotels%s within that price range.",
	},
	entities.QueryTypeAmenitySearch: {
		intro:   "These hotels%s match the features you asked for:",
		noMatch: "I couldn't find hotels%s with those features.",
	},
	entities.QueryTypeQualitySearch: {
		intro:   "Here are the best-rated hotels%s:",
		noMatch: "I couldn't find hotels%s rated that highly.",
	},
	entities.QueryTypeRefinement: {
		intro:   "Here are some other options%s:",
		noMatch: "I couldn't find other options%s that narrow it down further.",
	},
	entities.QueryTypeGeneral: {
		intro:   "Here are some hotels you might like%s:",
		noMatch: "I couldn't find hotels%s matching your request.",
	},
}

// RenderTemplateResponse composes a deterministic response from the phrase
// bank. It never returns an empty string.
func RenderTemplateResponse(in RenderInput) string {
	p, ok := phraseBank[in.Query.QueryType]
	if !ok {
		p = phraseBank[entities.QueryTypeGeneral]
	}
	place := ""
	if in.Query.Filters.City != "" {
		place = " in " + titleCase(in.Query.Filters.City)
	}

	var b strings.Builder
	if len(in.Hotels) == 0 {
		b.WriteString(fmt.Sprintf(p.noMatch, place))
		b.WriteString(" Try widening your price range, removing a filter, or searching another city.")
		return b.String()
	}

	b.WriteString(fmt.Sprintf(p.intro, place))
	for i, h := range in.Hotels {
		fmt.Fprintf(&b, "\n%d. %s.", i+1, hotelLine(h))
	}
	if len(in.UnmatchedAmenities) > 0 {
		fmt.Fprintf(&b, "\nNote: none of these hotels list %s.", strings.Join(in.UnmatchedAmenities, ", "))
	}
	b.WriteString("\nWould you like cheaper options, better-rated ones, or something different?")
	return b.String()
}
