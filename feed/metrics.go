package feed

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/br-g/fastf1-livetiming/metric"
)

// Metrics holds Prometheus metrics for the feed client
type Metrics struct {
	envelopesTotal    prometheus.Counter
	recordsTotal      *prometheus.CounterVec
	duplicatesDropped prometheus.Counter
	decodeErrors      prometheus.Counter
	connected         prometheus.Gauge
	negotiationsTotal *prometheus.CounterVec
	reconnectsTotal   prometheus.Counter
	retryAttempt      prometheus.Gauge
}

// newMetrics creates and registers feed metrics. A nil registry disables
// instrumentation.
func newMetrics(registry *metric.MetricsRegistry, componentName string) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		envelopesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livetiming",
			Subsystem: "session",
			Name:      "envelopes_total",
			Help:      "Total envelopes read from the feed",
		}),

		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livetiming",
			Subsystem: "session",
			Name:      "records_total",
			Help:      "Total decoded records delivered to the recorder",
		}, []string{"topic"}),

		duplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livetiming",
			Subsystem: "session",
			Name:      "duplicates_dropped_total",
			Help:      "Entries dropped by per-session duplicate suppression",
		}),

		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livetiming",
			Subsystem: "session",
			Name:      "decode_errors_total",
			Help:      "Entries skipped because their payload failed to decode",
		}),

		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livetiming",
			Subsystem: "session",
			Name:      "connected",
			Help:      "Whether a session is currently streaming (0 or 1)",
		}),

		negotiationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livetiming",
			Subsystem: "supervisor",
			Name:      "negotiations_total",
			Help:      "Negotiation attempts by outcome",
		}, []string{"outcome"}),

		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "livetiming",
			Subsystem: "supervisor",
			Name:      "reconnects_total",
			Help:      "Total reconnection attempts",
		}),

		retryAttempt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "livetiming",
			Subsystem: "supervisor",
			Name:      "retry_attempt",
			Help:      "Current consecutive-failure count",
		}),
	}

	registry.RegisterCounter(componentName, "envelopes_total", metrics.envelopesTotal)
	registry.RegisterCounterVec(componentName, "records_total", metrics.recordsTotal)
	registry.RegisterCounter(componentName, "duplicates_dropped", metrics.duplicatesDropped)
	registry.RegisterCounter(componentName, "decode_errors", metrics.decodeErrors)
	registry.RegisterGauge(componentName, "connected", metrics.connected)
	registry.RegisterCounterVec(componentName, "negotiations_total", metrics.negotiationsTotal)
	registry.RegisterCounter(componentName, "reconnects_total", metrics.reconnectsTotal)
	registry.RegisterGauge(componentName, "retry_attempt", metrics.retryAttempt)

	return metrics
}
