package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-history/internal/weather"
	"github.com/i474232898/weather-history/internal/weather/providers"
)

var (
	_ providers.Recorder = (*Metrics)(nil)
	_ weather.Recorder   = (*Metrics)(nil)
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveUpstream("openmeteo", "ok", 20*time.Millisecond)
	m.ObserveUpstream("openmeteo", "ok", 30*time.Millisecond)
	m.ObserveUpstream("openmeteo", "server_error", time.Second)
	m.HistoricalFallback("openmeteo")
	m.RecordOperation("create", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("openmeteo", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("openmeteo", "server_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("openmeteo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("create", "ok")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordOperation("delete", "not_found")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `weather_history_record_operations_total{operation="delete",outcome="not_found"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
