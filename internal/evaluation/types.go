package evaluation

import (
	"time"

	"github.com/nahid2887/today/internal/domain/entities"
)

// GoldenQuery represents a labeled test query with expected outcomes.
type GoldenQuery struct {
	ID        string             `json:"id"`
	Query     string             `json:"query"`
	QueryType entities.QueryType `json:"query_type"`
	// ExpectedCity is the normalized city the interpreter should extract,
	// empty when the query names none.
	ExpectedCity     string   `json:"expected_city,omitempty"`
	ExpectedHotelIDs []string `json:"expected_hotel_ids"`
	Difficulty       string   `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single query.
type EvalResult struct {
	QueryID     string             `json:"query_id"`
	Query       string             `json:"query"`
	QueryType   entities.QueryType `json:"query_type"`
	TypeMatched bool               `json:"type_matched"`
	CityMatched bool               `json:"city_matched"`
	Recall      float64            `json:"recall"`
	MRR         float64            `json:"mrr"`
	Retrieved   []string           `json:"retrieved"`
	Latency     time.Duration      `json:"latency"`
	Error       string             `json:"error,omitempty"`
}

// EvalSummary holds aggregate metrics across all golden queries.
type EvalSummary struct {
	TotalQueries      int                                 `json:"total_queries"`
	K                 int                                 `json:"k"`
	AvgRecall         float64                             `json:"avg_recall"`
	AvgMRR            float64                             `json:"avg_mrr"`
	InterpretAccuracy float64                             `json:"interpret_accuracy"`
	AvgLatency        time.Duration                       `json:"avg_latency"`
	QueriesWithHits   int                                 `json:"queries_with_hits"`
	Errors            int                                 `json:"errors"`
	ByType            map[entities.QueryType]*TypeSummary `json:"by_type"`
	Results           []EvalResult                        `json:"results"`
}

// TypeSummary holds metrics grouped by expected query type.
type TypeSummary struct {
	Count     int     `json:"count"`
	AvgRecall float64 `json:"avg_recall"`
	AvgMRR    float64 `json:"avg_mrr"`
}
