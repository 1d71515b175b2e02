package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/healthz", "200", time.Millisecond)
	m.ApiInflightInc()
	m.ApiInflightDec()
	m.ObservePrediction("healthcare", "ok", 50, time.Millisecond)
	m.ObserveProvider("geocoding", 200, time.Millisecond)
	m.IncIndicatorCache("hit")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRecordAndExpose(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/predict/healthcare", "200", 20*time.Millisecond)
	m.ObservePrediction("healthcare", "ok", 42, 10*time.Millisecond)
	m.ObservePrediction("education", "geocode_failure", 0, 10*time.Millisecond)
	m.ObserveProvider("worldbank", 0, time.Second)
	m.IncIndicatorCache("miss")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("POST", "/predict/healthcare", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues("education", "geocode_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequests.WithLabelValues("worldbank", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.indicatorCache.WithLabelValues("miss")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "connectivity_predictions_total")
	assert.Contains(t, rec.Body.String(), "connectivity_demand_score_bucket")
}

func TestInitReturnsSingleton(t *testing.T) {
	a := Init(nil)
	b := Init(nil)
	assert.Same(t, a, b)
	assert.Same(t, a, Current())
}
