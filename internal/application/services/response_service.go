package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/providers"
	"github.com/nahid2887/today/internal/infrastructure/observability"
	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// RenderState is a state of the response renderer.
type RenderState string

const (
	RenderPrimary  RenderState = "PRIMARY"
	RenderFallback RenderState = "FALLBACK"
	RenderTemplate RenderState = "TEMPLATE"
)

// RenderInput is everything the renderer may mention.
type RenderInput struct {
	Query              entities.QueryContext
	Hotels             []entities.HydratedHotel
	History            []entities.Turn
	UnmatchedAmenities []string
}

// ResponseService renders the natural-language answer. It walks
// PRIMARY → FALLBACK → TEMPLATE and always returns non-empty text.
type ResponseService struct {
	primary  providers.LLMProvider
	fallback providers.LLMProvider
	timeout  time.Duration
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewResponseService creates a renderer. Either provider may be nil, in which
// case its state is skipped.
func NewResponseService(primary, fallback providers.LLMProvider, timeout time.Duration, logger zerolog.Logger) *ResponseService {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ResponseService{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger,
	}
}

// SetMetrics sets the metrics sink.
func (s *ResponseService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Render produces the response text and the source that produced it.
func (s *ResponseService) Render(ctx context.Context, in RenderInput) (string, entities.ResponseSource) {
	ctx, span := observability.StartSpan(ctx, "pipeline.render")
	defer span.End()
	start := time.Now()

	req := BuildPrompt(in)
	state := RenderPrimary
	var text string
	var source entities.ResponseSource
	for source == "" {
		var err error
		switch state {
		case RenderPrimary:
			text, err = s.attempt(ctx, s.primary, req)
			if err == nil {
				source = entities.ResponseSourcePrimary
				break
			}
			s.logger.Warn().Err(err).Msg("primary LLM failed, trying fallback")
			state = RenderFallback
		case RenderFallback:
			text, err = s.attempt(ctx, s.fallback, req)
			if err == nil {
				source = entities.ResponseSourceFallback
				break
			}
			s.logger.Warn().Err(apperrors.NewProviderUnavailableError("all LLM providers failed", err)).Msg("rendering from template")
			state = RenderTemplate
		case RenderTemplate:
			text = RenderTemplateResponse(in)
			source = entities.ResponseSourceTemplate
		}
	}

	span.SetAttributes(attribute.String("render.source", string(source)))
	observability.RecordResponseSource(ctx, s.metrics, string(source))
	observability.RecordStage(ctx, s.metrics, "render", time.Since(start))
	return text, source
}

var errNoProvider = fmt.Errorf("provider not configured")

// attempt runs one provider call under the render timeout. Empty text counts
// as a failure.
func (s *ResponseService) attempt(ctx context.Context, provider providers.LLMProvider, req providers.LLMRequest) (string, error) {
	if provider == nil {
		return "", errNoProvider
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type answer struct {
		text string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		text, err := provider.Complete(callCtx, req)
		ch <- answer{text: text, err: err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			return "", fmt.Errorf("%s: %w", provider.Name(), a.err)
		}
		if strings.TrimSpace(a.text) == "" {
			return "", fmt.Errorf("%s returned empty text", provider.Name())
		}
		return strings.TrimSpace(a.text), nil
	case <-callCtx.Done():
		return "", fmt.Errorf("%s: %w", provider.Name(), callCtx.Err())
	}
}
