// Package metric provides Prometheus metrics for the live timing client.
//
// Components create their own prometheus collectors and register them under
// a component-scoped name:
//
//	registry := metric.NewMetricsRegistry()
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "livetiming",
//	    Subsystem: "session",
//	    Name:      "records_total",
//	    Help:      "Total decoded records emitted",
//	})
//	registry.RegisterCounter("session", "records_total", counter)
//
// Server exposes the registry on an HTTP endpoint for scraping. Metrics are
// optional throughout: components accept a nil registry and skip
// instrumentation.
package metric
