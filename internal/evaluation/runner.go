package evaluation

import (
	"context"
	"time"

	"github.com/nahid2887/today/internal/application/services"
	"github.com/nahid2887/today/internal/domain/entities"
)

// Interpreter turns raw text into a query context.
type Interpreter interface {
	Interpret(rawQuery string, session *entities.SessionState) entities.QueryContext
}

// Retriever returns index candidates for an interpreted query.
type Retriever interface {
	Search(ctx context.Context, qc entities.QueryContext, shown entities.HotelIDSet) (services.SearchOutcome, error)
}

// Ranker orders candidates by composite score.
type Ranker interface {
	Order(candidates []entities.ScoredHotel, shown entities.HotelIDSet) []entities.RankedHotel
}

// Runner scores interpretation and retrieval against golden queries. Live
// pricing and rendering are not involved.
type Runner struct {
	interpreter Interpreter
	retriever   Retriever
	ranker      Ranker
	k           int
	now         func() time.Time
}

func NewRunner(interpreter Interpreter, retriever Retriever, ranker Ranker, k int) *Runner {
	if k <= 0 {
		k = 10
	}
	return &Runner{interpreter: interpreter, retriever: retriever, ranker: ranker, k: k, now: time.Now}
}

func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalQueries: len(queries),
		K:            r.k,
		ByType:       make(map[entities.QueryType]*TypeSummary),
	}

	interpretedOK := 0
	for _, gq := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := r.evaluate(ctx, gq)
		if result.TypeMatched && result.CityMatched {
			interpretedOK++
		}
		r.updateSummary(summary, result)
	}

	if summary.TotalQueries > 0 {
		summary.InterpretAccuracy = float64(interpretedOK) / float64(summary.TotalQueries)
	}
	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) evaluate(ctx context.Context, gq GoldenQuery) EvalResult {
	start := r.now()
	qc := r.interpreter.Interpret(gq.Query, nil)

	result := EvalResult{
		QueryID:     gq.ID,
		Query:       gq.Query,
		QueryType:   gq.QueryType,
		TypeMatched: qc.QueryType == gq.QueryType,
		CityMatched: qc.Filters.City == entities.NormalizeCity(gq.ExpectedCity),
	}

	outcome, err := r.retriever.Search(ctx, qc, nil)
	if err != nil {
		result.Error = err.Error()
		result.Latency = r.now().Sub(start)
		return result
	}

	ranked := r.ranker.Order(outcome.Candidates, nil)
	result.Retrieved = append([]string{}, head(rankedIDs(ranked), r.k)...)
	result.Recall = RecallAtK(gq.ExpectedHotelIDs, result.Retrieved, r.k)
	result.MRR = MRRAtK(gq.ExpectedHotelIDs, result.Retrieved, r.k)
	result.Latency = r.now().Sub(start)
	return result
}

func rankedIDs(ranked []entities.RankedHotel) []string {
	ids := make([]string, len(ranked))
	for i, h := range ranked {
		ids[i] = h.HotelID
	}
	return ids
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgLatency += res.Latency
	if res.Error != "" {
		s.Errors++
	}
	if len(res.Retrieved) > 0 {
		s.QueriesWithHits++
	}
	s.AvgRecall += res.Recall
	s.AvgMRR += res.MRR

	if _, ok := s.ByType[res.QueryType]; !ok {
		s.ByType[res.QueryType] = &TypeSummary{}
	}
	ts := s.ByType[res.QueryType]
	ts.Count++
	ts.AvgRecall += res.Recall
	ts.AvgMRR += res.MRR
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalQueries > 0 {
		n := float64(s.TotalQueries)
		s.AvgRecall /= n
		s.AvgMRR /= n
		s.AvgLatency /= time.Duration(s.TotalQueries)
	}

	for _, ts := range s.ByType {
		if ts.Count > 0 {
			n := float64(ts.Count)
			ts.AvgRecall /= n
			ts.AvgMRR /= n
		}
	}
}
