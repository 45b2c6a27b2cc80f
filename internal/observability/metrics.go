package observability

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skiff/internal/wire"
)

// Metrics holds all Prometheus metrics for the daemon. Construct it
// once per process; promauto registers against the default registry.
type Metrics struct {
	HandshakesTotal   *prometheus.CounterVec
	HandshakeDuration prometheus.Histogram
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  *prometheus.CounterVec
	DisconnectsTotal  *prometheus.CounterVec
	RekeysTotal       prometheus.Counter

	activeConnections int64
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		HandshakesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skiff_handshakes_total",
				Help: "Key exchanges by result",
			},
			[]string{"result", "algorithm"},
		),

		HandshakeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skiff_handshake_duration_seconds",
				Help:    "Key exchange completion time distribution",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		ConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "skiff_connections_active",
				Help: "Currently open transport connections",
			},
		),

		ConnectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skiff_connections_total",
				Help: "Transport connection attempts",
			},
			[]string{"result"},
		),

		DisconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skiff_disconnects_total",
				Help: "Disconnect messages sent, by reason",
			},
			[]string{"reason"},
		),

		RekeysTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "skiff_rekeys_total",
				Help: "Re-exchanges completed on live connections",
			},
		),
	}
}

// RecordConnectionOpen updates counters for an accepted connection.
func (m *Metrics) RecordConnectionOpen() {
	atomic.AddInt64(&m.activeConnections, 1)
	m.ConnectionsActive.Set(float64(atomic.LoadInt64(&m.activeConnections)))
	m.ConnectionsTotal.WithLabelValues("accepted").Inc()
}

// RecordConnectionClose updates counters for a finished connection.
func (m *Metrics) RecordConnectionClose() {
	atomic.AddInt64(&m.activeConnections, -1)
	m.ConnectionsActive.Set(float64(atomic.LoadInt64(&m.activeConnections)))
}

// RecordConnectionFailed counts a connection that never finished its
// first exchange.
func (m *Metrics) RecordConnectionFailed() {
	m.ConnectionsTotal.WithLabelValues("failed").Inc()
}

// RecordHandshake records one key exchange outcome.
func (m *Metrics) RecordHandshake(algorithm string, success bool, durationSeconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.HandshakesTotal.WithLabelValues(result, algorithm).Inc()
	m.HandshakeDuration.Observe(durationSeconds)
}

// RecordDisconnect counts an outbound disconnect by reason code.
func (m *Metrics) RecordDisconnect(reason uint32) {
	m.DisconnectsTotal.WithLabelValues(disconnectReasonLabel(reason)).Inc()
}

// RecordRekey counts a completed re-exchange.
func (m *Metrics) RecordRekey() {
	m.RekeysTotal.Inc()
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func disconnectReasonLabel(reason uint32) string {
	switch reason {
	case wire.DisconnectProtocolError:
		return "protocol_error"
	case wire.DisconnectKeyExchangeFailed:
		return "key_exchange_failed"
	case wire.DisconnectByApplication:
		return "by_application"
	default:
		return strconv.FormatUint(uint64(reason), 10)
	}
}
