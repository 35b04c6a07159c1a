package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, NewLogger(InfoLevel, &bytes.Buffer{}))
	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, ShutdownOTel(context.Background(), providers, nil))
}

func TestInitOTel_RequiresEndpoint(t *testing.T) {
	_, err := InitOTel(context.Background(), OTelConfig{Enabled: true}, NewLogger(InfoLevel, &bytes.Buffer{}))
	assert.Error(t, err)
}

func TestInitOTel_Insecure(t *testing.T) {
	// exporters connect lazily so no collector is needed
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	providers, err := InitOTel(context.Background(), OTelConfig{
		Enabled:     true,
		Endpoint:    "127.0.0.1:4317",
		ServiceName: "idsync-test",
		Insecure:    true,
		SampleRatio: 0.5,
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = ShutdownOTel(ctx, providers, logger)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestUpdateLoggerWithTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	UpdateLoggerWithTraceContext(context.Background(), logger).Info("no span")
	assert.NotContains(t, buf.String(), "trace_id")

	buf.Reset()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(tracetest.NewSpanRecorder()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	UpdateLoggerWithTraceContext(ctx, logger).Info("with span")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}
