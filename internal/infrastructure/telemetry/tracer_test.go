package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campusfin/client/internal/infrastructure/config"
	"github.com/campusfin/client/internal/infrastructure/httpclient"
	"github.com/campusfin/client/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), config.TelemetryConfig{
		Enabled:     false,
		ServiceName: "campusfin-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewTracerProvider_ExportsClientSpans(t *testing.T) {
	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})

	exporter := tracetest.NewInMemoryExporter()
	tp, err := telemetry.NewTracerProvider(context.Background(), config.TelemetryConfig{
		Enabled:       true,
		SamplingRatio: 1.0,
		ServiceName:   "campusfin-test",
	}, zaptest.NewLogger(t), telemetry.WithExporter(exporter))
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := httpclient.New(config.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	var out []any
	require.NoError(t, client.Get(context.Background(), "/finance/semesters", nil, &out))

	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /finance/semesters", spans[0].Name)
	assert.Contains(t, traceparent, spans[0].SpanContext.TraceID().String())

	require.NoError(t, tp.Shutdown(context.Background()))
}
