package evaluation

import "fmt"

// GuardrailConfig holds the minimum aggregate scores an evaluation must reach.
// A zero threshold is not checked.
type GuardrailConfig struct {
	MinRecall            float64
	MinMRR               float64
	MinInterpretAccuracy float64
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	return &Guardrails{config: config}
}

// Violations lists every threshold the summary misses.
func (g *Guardrails) Violations(s *EvalSummary) []string {
	var out []string
	if g.config.MinRecall > 0 && s.AvgRecall < g.config.MinRecall {
		out = append(out, fmt.Sprintf("recall %.3f below %.3f", s.AvgRecall, g.config.MinRecall))
	}
	if g.config.MinMRR > 0 && s.AvgMRR < g.config.MinMRR {
		out = append(out, fmt.Sprintf("mrr %.3f below %.3f", s.AvgMRR, g.config.MinMRR))
	}
	if g.config.MinInterpretAccuracy > 0 && s.InterpretAccuracy < g.config.MinInterpretAccuracy {
		out = append(out, fmt.Sprintf("interpret accuracy %.3f below %.3f", s.InterpretAccuracy, g.config.MinInterpretAccuracy))
	}
	if s.Errors > 0 {
		out = append(out, fmt.Sprintf("%d queries failed", s.Errors))
	}
	return out
}
