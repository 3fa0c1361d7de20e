// Package metrics implements the observability hooks on Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/canopyviz/canopy/pkg/observability"
)

// Metrics holds every collector and satisfies observability.PipelineHooks,
// RenderHooks, CacheHooks and HTTPHooks.
type Metrics struct {
	gatherer prometheus.Gatherer

	ParseTotal    *prometheus.CounterVec
	ParseDuration *prometheus.HistogramVec
	ParsedNodes   prometheus.Histogram

	LayoutTotal    *prometheus.CounterVec
	LayoutDuration *prometheus.HistogramVec
	LayoutPoints   prometheus.Gauge

	Frames          prometheus.Counter
	FrameDuration   prometheus.Histogram
	FrameDrawn      prometheus.Gauge
	FramePotential  prometheus.Gauge
	FrameLinksDrawn prometheus.Gauge

	CacheRequests *prometheus.CounterVec
	CacheBytes    *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge
}

// New registers all collectors on reg. A *prometheus.Registry is used as the
// gatherer for Handler when reg is one; otherwise the default gatherer is.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		gatherer: prometheus.DefaultGatherer,

		ParseTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_parse_total",
			Help: "Tree inputs parsed, by format and outcome",
		}, []string{"format", "outcome"}),
		ParseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canopy_parse_duration_seconds",
			Help:    "Time spent parsing tree inputs",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"format"}),
		ParsedNodes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "canopy_parsed_nodes",
			Help:    "Logical node count per parsed input",
			Buckets: prometheus.ExponentialBuckets(10, 10, 8),
		}),

		LayoutTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_layout_total",
			Help: "Layouts computed, by mode and outcome",
		}, []string{"mode", "outcome"}),
		LayoutDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canopy_layout_duration_seconds",
			Help:    "Time spent computing layouts and visual graphs",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"mode"}),
		LayoutPoints: f.NewGauge(prometheus.GaugeOpts{
			Name: "canopy_layout_points",
			Help: "Visual point count of the most recent layout",
		}),

		Frames: f.NewCounter(prometheus.CounterOpts{
			Name: "canopy_frames_total",
			Help: "Frames drawn",
		}),
		FrameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "canopy_frame_duration_seconds",
			Help:    "Time spent issuing one frame",
			Buckets: []float64{0.001, 0.004, 0.008, 0.016, 0.033, 0.066, 0.25, 1},
		}),
		FrameDrawn: f.NewGauge(prometheus.GaugeOpts{
			Name: "canopy_frame_points_drawn",
			Help: "Points drawn in the most recent frame",
		}),
		FramePotential: f.NewGauge(prometheus.GaugeOpts{
			Name: "canopy_frame_points_potential",
			Help: "Points in visible cells in the most recent frame",
		}),
		FrameLinksDrawn: f.NewGauge(prometheus.GaugeOpts{
			Name: "canopy_frame_links_drawn",
			Help: "Links drawn in the most recent frame",
		}),

		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_cache_requests_total",
			Help: "Snapshot cache lookups, by backend and result",
		}, []string{"backend", "result"}),
		CacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_cache_written_bytes_total",
			Help: "Bytes written to the snapshot cache",
		}, []string{"backend"}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_http_requests_total",
			Help: "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "canopy_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"}),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "canopy_http_requests_in_flight",
			Help: "Requests currently being served",
		}),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Install registers m for every observability hook family.
func (m *Metrics) Install() {
	observability.SetPipelineHooks(m)
	observability.SetRenderHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// OnParseStart implements observability.PipelineHooks.
func (m *Metrics) OnParseStart(context.Context, string, string) {}

// OnParseComplete implements observability.PipelineHooks.
func (m *Metrics) OnParseComplete(_ context.Context, format string, nodeCount int, d time.Duration, err error) {
	m.ParseTotal.WithLabelValues(format, outcome(err)).Inc()
	m.ParseDuration.WithLabelValues(format).Observe(d.Seconds())
	if err == nil {
		m.ParsedNodes.Observe(float64(nodeCount))
	}
}

// OnLayoutStart implements observability.PipelineHooks.
func (m *Metrics) OnLayoutStart(context.Context, string, int) {}

// OnLayoutComplete implements observability.PipelineHooks.
func (m *Metrics) OnLayoutComplete(_ context.Context, mode string, points, _ int, d time.Duration, err error) {
	m.LayoutTotal.WithLabelValues(mode, outcome(err)).Inc()
	m.LayoutDuration.WithLabelValues(mode).Observe(d.Seconds())
	if err == nil {
		m.LayoutPoints.Set(float64(points))
	}
}

// OnFrame implements observability.RenderHooks.
func (m *Metrics) OnFrame(_ context.Context, _, potential, drawn, links int, d time.Duration) {
	m.Frames.Inc()
	m.FrameDuration.Observe(d.Seconds())
	m.FrameDrawn.Set(float64(drawn))
	m.FramePotential.Set(float64(potential))
	m.FrameLinksDrawn.Set(float64(links))
}

// OnCacheHit implements observability.CacheHooks.
func (m *Metrics) OnCacheHit(_ context.Context, backend string) {
	m.CacheRequests.WithLabelValues(backend, "hit").Inc()
}

// OnCacheMiss implements observability.CacheHooks.
func (m *Metrics) OnCacheMiss(_ context.Context, backend string) {
	m.CacheRequests.WithLabelValues(backend, "miss").Inc()
}

// OnCacheSet implements observability.CacheHooks.
func (m *Metrics) OnCacheSet(_ context.Context, backend string, size int) {
	m.CacheBytes.WithLabelValues(backend).Add(float64(size))
}

// OnRequest implements observability.HTTPHooks.
func (m *Metrics) OnRequest(context.Context, string, string) {
	m.HTTPInFlight.Inc()
}

// OnResponse implements observability.HTTPHooks.
func (m *Metrics) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	m.HTTPInFlight.Dec()
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
