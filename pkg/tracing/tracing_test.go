package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestInitTracer_Disabled(t *testing.T) {
	cfg := DefaultConfig("storefront")

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_Enabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	cfg := Config{
		ServiceName:    "storefront",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "127.0.0.1:0",
		SampleRate:     0.5,
		Enabled:        true,
	}

	shutdown, err := InitTracer(context.Background(), cfg)
	require.NoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "expected SDK tracer provider, got %T", otel.GetTracerProvider())

	// The endpoint is unreachable; a flush error on shutdown is fine.
	_ = shutdown(context.Background())
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "ParentBased")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("storefront")
	assert.Equal(t, "storefront", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
}

func TestStartClientSpan_InjectsTraceparent(t *testing.T) {
	rec := withRecorder(t)
	_, err := InitTracer(context.Background(), DefaultConfig("storefront"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://api.local/user/my-info", nil)
	_, span := StartClientSpan(context.Background(), "test", req)
	EndClientSpan(span, http.StatusOK, nil)

	assert.NotEmpty(t, req.Header.Get("traceparent"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /user/my-info", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestEndClientSpan_RecordsErrors(t *testing.T) {
	rec := withRecorder(t)

	req := httptest.NewRequest(http.MethodPost, "http://api.local/auth/login", nil)
	_, span := StartClientSpan(context.Background(), "test", req)
	EndClientSpan(span, 0, errors.New("connection refused"))

	_, span = StartClientSpan(context.Background(), "test", req)
	EndClientSpan(span, http.StatusBadGateway, nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "connection refused", spans[0].Status().Description)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
