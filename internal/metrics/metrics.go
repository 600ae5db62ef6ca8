// Package metrics exposes Prometheus instrumentation for the request pipeline.
//
// All collectors live on a private registry so tests and multiple servers in
// one process do not collide. Methods are safe on a nil *Metrics, which lets
// callers that do not care about instrumentation pass nil.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vidisnap/internal/workpool"
)

// Metrics groups the collectors the service updates.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	requestTime   prometheus.Histogram
	stageTime     *prometheus.HistogramVec
	uploadBytes   prometheus.Histogram
	modelLoaded   prometheus.Gauge
	poolInFlight  *prometheus.GaugeVec
	poolWaiting   *prometheus.GaugeVec
	pools         []*workpool.Pool
	cleanupFailed func() int64
}

// New registers every collector on a fresh registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vidisnap_requests_total",
			Help: "Processed upload requests by outcome and failure kind",
		}, []string{"outcome", "kind"}),
		requestTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidisnap_request_duration_seconds",
			Help:    "End-to-end duration of /process requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		stageTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidisnap_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		uploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidisnap_upload_bytes",
			Help:    "Size of stored uploads",
			Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
		}),
		modelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vidisnap_model_loaded",
			Help: "1 once the inference engine finished loading",
		}),
		poolInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vidisnap_pool_in_flight",
			Help: "Jobs currently running per worker pool",
		}, []string{"pool"}),
		poolWaiting: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vidisnap_pool_waiting",
			Help: "Jobs waiting for a slot per worker pool",
		}, []string{"pool"}),
	}
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "vidisnap_artifact_cleanup_failures_total",
		Help: "Request artifacts that could not be removed",
	}, func() float64 {
		if m.cleanupFailed == nil {
			return 0
		}
		return float64(m.cleanupFailed())
	})
	return m
}

// ObserveRequest records a finished request. kind is empty on success.
func (m *Metrics) ObserveRequest(outcome, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome, kind).Inc()
	m.requestTime.Observe(elapsed.Seconds())
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageTime.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveUpload records the size of a stored upload.
func (m *Metrics) ObserveUpload(bytes int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Observe(float64(bytes))
}

// SetModelLoaded flips the model readiness gauge.
func (m *Metrics) SetModelLoaded(loaded bool) {
	if m == nil {
		return
	}
	if loaded {
		m.modelLoaded.Set(1)
		return
	}
	m.modelLoaded.Set(0)
}

// TrackPools samples pool occupancy on every scrape.
func (m *Metrics) TrackPools(pools ...*workpool.Pool) {
	if m == nil {
		return
	}
	m.pools = append(m.pools, pools...)
}

// TrackCleanupFailures exposes a cleanup failure counter owned elsewhere.
func (m *Metrics) TrackCleanupFailures(fn func() int64) {
	if m == nil {
		return
	}
	m.cleanupFailed = fn
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range m.pools {
			stats := p.Stats()
			m.poolInFlight.WithLabelValues(stats.Name).Set(float64(stats.InFlight))
			m.poolWaiting.WithLabelValues(stats.Name).Set(float64(stats.Waiting))
		}
		inner.ServeHTTP(w, r)
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
