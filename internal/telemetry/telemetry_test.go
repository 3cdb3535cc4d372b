package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestSignalPath(t *testing.T) {
	tests := []struct {
		prefix, signal, want string
	}{
		{"", "traces", "/v1/traces"},
		{"/otlp", "traces", "/otlp/v1/traces"},
		{"otlp/", "metrics", "/otlp/v1/metrics"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SignalPath(tt.prefix, tt.signal))
	}
}

func TestSampler(t *testing.T) {
	params := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 1},
		Name:          "POST /upload",
	}

	assert.Equal(t, sdktrace.RecordAndSample, Sampler(1).ShouldSample(params).Decision)
	assert.Equal(t, sdktrace.Drop, Sampler(0).ShouldSample(params).Decision)
}

func TestInitializeDisabled(t *testing.T) {
	p, err := Initialize(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInitializeRequiresEndpoint(t *testing.T) {
	_, err := Initialize(context.Background(), Config{Enabled: true})
	assert.Error(t, err)
}

func TestInitializeExportsToCollector(t *testing.T) {
	var mu sync.Mutex
	got := map[string]string{}
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got[r.URL.Path] = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	ctx := context.Background()
	p, err := Initialize(ctx, Config{
		Enabled:        true,
		ServiceName:    "image-file-server-test",
		Endpoint:       strings.TrimPrefix(collector.URL, "http://"),
		URLPathPrefix:  "/otlp",
		Headers:        map[string]string{"Authorization": "Bearer test"},
		Insecure:       true,
		SampleRatio:    1,
		MetricInterval: time.Hour,
	})
	require.NoError(t, err)
	require.NotNil(t, p)

	_, span := p.TracerProvider.Tracer("test").Start(ctx, "lifecycle.Upload")
	span.End()
	counter, err := p.MeterProvider.Meter("test").Int64Counter("fileserver.files.written")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(shutdownCtx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]string{
		"/otlp/v1/traces":  "Bearer test",
		"/otlp/v1/metrics": "Bearer test",
	}, got)
}
