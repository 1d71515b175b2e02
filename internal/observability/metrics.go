package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/connectivity-demand/internal/platform/logger"
)

const namespace = "connectivity"

// Metrics owns its registry so tests can build isolated instances.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	predictions       *prometheus.CounterVec
	predictionLatency *prometheus.HistogramVec
	demandScore       *prometheus.HistogramVec

	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec

	indicatorCache *prometheus.CounterVec
}

var (
	initMu   sync.Mutex
	instance *Metrics
)

// Current returns the process-wide metrics, or nil when metrics are disabled.
func Current() *Metrics {
	initMu.Lock()
	defer initMu.Unlock()
	return instance
}

// Init builds the process-wide metrics once. Later calls return the same instance.
func Init(log *logger.Logger) *Metrics {
	initMu.Lock()
	defer initMu.Unlock()
	if instance == nil {
		instance = NewMetrics()
		if log != nil {
			log.Info("Prometheus metrics initialized")
		}
	}
	return instance
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "HTTP requests currently being served.",
		}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions by service and outcome.",
		}, []string{"service", "outcome"}),
		predictionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "End-to-end prediction latency, including provider calls.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"service"}),
		demandScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "demand_score",
			Help:      "Distribution of predicted demand scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}, []string{"service"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Outbound provider calls by provider and status.",
		}, []string{"provider", "status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Outbound provider call latency.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		indicatorCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicator_cache_total",
			Help:      "Indicator cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.predictions, m.predictionLatency, m.demandScore,
		m.providerRequests, m.providerLatency,
		m.indicatorCache,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObservePrediction records one prediction. outcome is "ok" or an error kind;
// the score is only recorded for successful predictions.
func (m *Metrics) ObservePrediction(service, outcome string, score float64, dur time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(service, outcome).Inc()
	m.predictionLatency.WithLabelValues(service).Observe(dur.Seconds())
	if outcome == "ok" {
		m.demandScore.WithLabelValues(service).Observe(score)
	}
}

// ObserveProvider records an outbound call. A zero status means a transport error.
func (m *Metrics) ObserveProvider(provider string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.providerRequests.WithLabelValues(provider, label).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(dur.Seconds())
}

func (m *Metrics) IncIndicatorCache(result string) {
	if m == nil {
		return
	}
	m.indicatorCache.WithLabelValues(result).Inc()
}
