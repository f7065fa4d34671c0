// Package metrics holds the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Namespace = "resend_mcp"

	// Rejection reasons reported by the network transport.
	ReasonNoSession      = "no_session"
	ReasonUnknownSession = "unknown_session"
	ReasonUnauthorized   = "unauthorized"
	ReasonParseError     = "parse_error"
	ReasonBatch          = "batch"
	ReasonMediaType      = "media_type"
	ReasonDraining       = "draining"
	ReasonInitialize     = "initialize_failed"
	ReasonProtocol       = "protocol_version"
)

// Metrics groups the server's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsCreated  prometheus.Counter
	rejections       *prometheus.CounterVec
	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them along with the process and
// Go runtime collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.sessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "sessions_created_total",
		Help:      "Sessions registered after a successful initialize.",
	})
	m.rejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "transport_rejections_total",
		Help:      "HTTP requests rejected by the transport before reaching a session.",
	}, []string{"reason"})
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "tool_calls_total",
		Help:      "Tool calls by tool and outcome.",
	}, []string{"tool", "outcome"})
	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "tool_call_duration_seconds",
		Help:      "Tool call latency including the upstream round trip.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})

	m.registry.MustRegister(m.sessionsCreated, m.rejections, m.toolCalls, m.toolCallDuration)
	return m
}

// TrackActiveSessions exports the value returned by fn as the active
// sessions gauge.
func (m *Metrics) TrackActiveSessions(fn func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently registered.",
	}, func() float64 { return float64(fn()) }))
}

// SessionCreated counts a registered session.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

// Rejected counts a transport rejection.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// ObserveToolCall records one tool call. Its signature matches
// mcpservice.ToolObserver.
func (m *Metrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if outcome == "unknown_tool" {
		// Client-supplied names would make the label unbounded.
		tool = "unknown"
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
