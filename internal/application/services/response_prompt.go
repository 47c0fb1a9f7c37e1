package services

import (
	"fmt"
	"strings"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/providers"
)

const systemPrompt = `You are a hotel concierge. Recommend only the hotels listed in the HOTELS block, in the given order.
For each hotel mention its name, city, rating and nightly price. Mention active offers when present.
If a price is marked stale, say it is the last known price. If a price is unknown, say so.
If no hotels are listed, apologise briefly and suggest widening the search.
If requested amenities are listed as unavailable, say none of the hotels offer them.
Keep the answer under 180 words. Do not invent hotels, prices or amenities.`

const promptHistoryTurns = 6

// BuildPrompt renders the LLM request for in. Primary and fallback receive
// the same request.
func BuildPrompt(in RenderInput) providers.LLMRequest {
	var messages []providers.LLMMessage
	history := in.History
	if len(history) > promptHistoryTurns {
		history = history[len(history)-promptHistoryTurns:]
	}
	for _, t := range history {
		messages = append(messages, providers.LLMMessage{Role: string(t.Role), Content: t.Content})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "QUERY: %s\n", in.Query.RawQuery)
	fmt.Fprintf(&b, "QUERY TYPE: %s\n", in.Query.QueryType)
	if f := describeFilters(in.Query.Filters); f != "" {
		fmt.Fprintf(&b, "FILTERS: %s\n", f)
	}
	if len(in.UnmatchedAmenities) > 0 {
		fmt.Fprintf(&b, "UNAVAILABLE AMENITIES: %s\n", strings.Join(in.UnmatchedAmenities, ", "))
	}
	b.WriteString("HOTELS:\n")
	if len(in.Hotels) == 0 {
		b.WriteString("(none)\n")
	}
	for i, h := range in.Hotels {
		fmt.Fprintf(&b, "%d. %s\n", i+1, hotelLine(h))
	}
	messages = append(messages, providers.LLMMessage{Role: string(entities.RoleUser), Content: b.String()})

	return providers.LLMRequest{
		System:      systemPrompt,
		Messages:    messages,
		Temperature: 0.4,
		MaxTokens:   400,
	}
}

func describeFilters(f entities.QueryFilters) string {
	var parts []string
	if f.City != "" {
		parts = append(parts, "city="+titleCase(f.City))
	}
	if f.MinPrice != nil {
		parts = append(parts, fmt.Sprintf("min_price=%.2f", *f.MinPrice))
	}
	if f.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("max_price=%.2f", *f.MaxPrice))
	}
	if f.MinRating != nil {
		parts = append(parts, fmt.Sprintf("min_rating=%.1f", *f.MinRating))
	}
	if len(f.Amenities) > 0 {
		parts = append(parts, "amenities="+strings.Join(f.Amenities, "/"))
	}
	return strings.Join(parts, "; ")
}

// hotelLine is the shared one-line description used by the prompt and the template.
func hotelLine(h entities.HydratedHotel) string {
	var b strings.Builder
	b.WriteString(h.Hotel.Name)
	if h.Hotel.City != "" {
		fmt.Fprintf(&b, " (%s)", titleCase(h.Hotel.City))
	}
	fmt.Fprintf(&b, ", rated %.1f/5", h.Hotel.AverageRating)
	if h.Hotel.TotalRatings > 0 {
		fmt.Fprintf(&b, " from %d reviews", h.Hotel.TotalRatings)
	}

	switch {
	case h.CurrentPrice == nil:
		b.WriteString(", price currently unavailable")
	default:
		fmt.Fprintf(&b, ", %s/night", formatPrice(*h.CurrentPrice, h.Currency))
		if h.HydrationStatus == entities.HydrationStale {
			b.WriteString(" (last known price)")
		}
	}
	if h.BestOfferPrice != nil {
		fmt.Fprintf(&b, ", from %s with current offer", formatPrice(*h.BestOfferPrice, h.Currency))
	}
	for _, o := range h.ActiveOffers {
		if o.Perks != "" {
			fmt.Fprintf(&b, ", perks: %s", o.Perks)
			break
		}
	}
	return b.String()
}

func formatPrice(v float64, currency string) string {
	switch strings.ToUpper(currency) {
	case "", "USD":
		return fmt.Sprintf("$%.2f", v)
	default:
		return fmt.Sprintf("%.2f %s", v, strings.ToUpper(currency))
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
