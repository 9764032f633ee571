package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	pkgconfig "github.com/shinshin4n4n/tube-review-sub001/pkg/config"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestConfig_FromEnvironment(t *testing.T) {
	var cfg Config
	err := pkgconfig.Load(&cfg, pkgconfig.WithEnvironment(map[string]string{
		"OTEL_ENABLED":     "true",
		"OTEL_SAMPLE_RATE": "0.25",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
	assert.Equal(t, "0.1.0", cfg.ServiceVersion)
}

func TestConfig_SampleRateOutOfRange(t *testing.T) {
	var cfg Config
	err := pkgconfig.Load(&cfg, pkgconfig.WithEnvironment(map[string]string{"OTEL_SAMPLE_RATE": "1.5"}))
	assert.Error(t, err)
}

func TestConfig_Sampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased"},
	}
	for _, tt := range tests {
		desc := Config{SampleRate: tt.rate}.Sampler().Description()
		assert.Contains(t, desc, tt.want)
		assert.Contains(t, desc, "ParentBased")
	}
}

func TestInitTracer_Disabled(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := InitTracer(context.Background(), Config{ServiceName: "tube-review"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDK)
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestInitTracer_Enabled(t *testing.T) {
	restoreGlobals(t)

	// Export is batched and asynchronous, so an unreachable endpoint does
	// not fail initialisation.
	shutdown, err := InitTracer(context.Background(), Config{
		ServiceName:    "tube-review",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "127.0.0.1:0",
		SampleRate:     1,
		Enabled:        true,
	})
	require.NoError(t, err)

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, isSDK)

	_, span := Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	_ = shutdown(context.Background())
}
