package server

import (
	"net/http"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/scanner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for scanning and serving.
type Metrics struct {
	registry *prometheus.Registry

	// Scanning metrics
	framesTotal         prometheus.Counter
	framesWithoutCodes  prometheus.Counter
	detectionsTotal     *prometheus.CounterVec
	decodeFailuresTotal *prometheus.CounterVec
	payloadErrorsTotal  prometheus.Counter
	decodeDuration      *prometheus.HistogramVec
	distinctCodes       prometheus.Gauge
	runsTotal           *prometheus.CounterVec

	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	websocketConnections   prometheus.Gauge
	websocketMessagesTotal *prometheus.CounterVec
}

// NewMetrics creates collectors on a fresh registry, including the Go runtime
// and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		framesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "qrscan_frames_total",
			Help: "Total number of processed frames",
		}),
		framesWithoutCodes: f.NewCounter(prometheus.CounterOpts{
			Name: "qrscan_frames_without_codes_total",
			Help: "Frames in which no method found a code",
		}),
		detectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrscan_detections_total",
			Help: "Detections by method and whether they were new or duplicates",
		}, []string{"method", "result"}), // result: new, duplicate
		decodeFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrscan_decode_failures_total",
			Help: "Recoverable decode failures",
		}, []string{"method"}),
		payloadErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "qrscan_payload_errors_total",
			Help: "Detections skipped because the payload was not valid UTF-8",
		}),
		decodeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qrscan_decode_duration_seconds",
			Help:    "Decode duration per method",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method"}),
		distinctCodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "qrscan_distinct_codes",
			Help: "Distinct codes in the detection log of the current run",
		}),
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrscan_runs_total",
			Help: "Finished runs by stop reason",
		}, []string{"reason"}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrscan_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qrscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		websocketConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "qrscan_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		}),
		websocketMessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrscan_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		}, []string{"direction"}), // direction: sent, received
	}
}

// Registry returns the registry all collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observer returns a scanner observer feeding these metrics.
func (m *Metrics) Observer() *MetricsObserver { return &MetricsObserver{m: m} }

// MetricsObserver records scanner events as Prometheus metrics.
type MetricsObserver struct {
	scanner.NoOpObserver
	m        *Metrics
	distinct int
}

func (o *MetricsObserver) OnRunStart(scanner.RunInfo) {
	o.distinct = 0
	o.m.distinctCodes.Set(0)
}

func (o *MetricsObserver) OnMethodResult(_ float64, method string, _ int, elapsed time.Duration) {
	o.m.decodeDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (o *MetricsObserver) OnDetection(d scanner.Detection, inserted bool) {
	result := "duplicate"
	if inserted {
		result = "new"
		o.distinct++
		o.m.distinctCodes.Set(float64(o.distinct))
	}
	o.m.detectionsTotal.WithLabelValues(d.Method, result).Inc()
}

func (o *MetricsObserver) OnNoDetection(float64) {
	o.m.framesWithoutCodes.Inc()
}

func (o *MetricsObserver) OnDecodeFailure(_ float64, method string, _ error) {
	o.m.decodeFailuresTotal.WithLabelValues(method).Inc()
}

func (o *MetricsObserver) OnPayloadError(float64, string, error) {
	o.m.payloadErrorsTotal.Inc()
}

func (o *MetricsObserver) OnFrameDone(int, float64, bool) {
	o.m.framesTotal.Inc()
}

func (o *MetricsObserver) OnRunComplete(s scanner.Summary) {
	o.m.runsTotal.WithLabelValues(string(s.Reason)).Inc()
}
