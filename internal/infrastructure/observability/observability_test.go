package observability

import (
	"context"
	"testing"
	"time"

	"github.com/nahid2887/today/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTELConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitMetrics_RecordersTolerateNoopProvider(t *testing.T) {
	metrics, err := InitMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	RecordRequestMetric(ctx, metrics, "POST", "/api/chat", 200, time.Millisecond)
	RecordStage(ctx, metrics, "search", time.Millisecond)
	RecordHydration(ctx, metrics, "ok", 3)
	RecordResponseSource(ctx, metrics, "template")
	RecordCacheHit(ctx, metrics, "last_known_price")
	RecordCacheMiss(ctx, metrics, "last_known_price")
	RecordUnresolvedCity(ctx, metrics, "nowhereville")

	RecordStage(ctx, nil, "search", time.Millisecond)
}

func TestSeverityMapping(t *testing.T) {
	assert.Equal(t, otellog.SeverityInfo, severity(zerolog.InfoLevel))
	assert.Equal(t, otellog.SeverityWarn, severity(zerolog.WarnLevel))
	assert.Equal(t, otellog.SeverityError, severity(zerolog.ErrorLevel))
	assert.Equal(t, otellog.SeverityUndefined, severity(zerolog.NoLevel))
}

func TestLoggerFromContext_WithoutSpan(t *testing.T) {
	logger := LoggerFromContext(context.Background())
	require.NotNil(t, logger)
}
