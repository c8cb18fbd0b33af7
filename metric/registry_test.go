package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/br-g/fastf1-livetiming/errors"
)

func newTestCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livetiming",
		Subsystem: "test",
		Name:      "events_total",
		Help:      "test counter",
	})
}

func TestRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	err := registry.RegisterCounter("session", "events_total", newTestCounter())
	require.NoError(t, err)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NoError(t, registry.RegisterCounter("session", "events_total", newTestCounter()))

	err := registry.RegisterCounter("session", "events_total", newTestCounter())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistry_SameNameDifferentComponent(t *testing.T) {
	registry := NewMetricsRegistry()

	a := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livetiming", Subsystem: "a", Name: "events_total", Help: "a",
	})
	b := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livetiming", Subsystem: "b", Name: "events_total", Help: "b",
	})

	require.NoError(t, registry.RegisterCounter("a", "events_total", a))
	require.NoError(t, registry.RegisterCounter("b", "events_total", b))
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NoError(t, registry.RegisterCounter("session", "events_total", newTestCounter()))
	assert.True(t, registry.Unregister("session", "events_total"))
	assert.False(t, registry.Unregister("session", "events_total"))

	// Slot is free again after unregistering.
	require.NoError(t, registry.RegisterCounter("session", "events_total", newTestCounter()))
}

func TestRegistry_GaugeAndVecs(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "livetiming", Subsystem: "session", Name: "connected", Help: "g",
	})
	require.NoError(t, registry.RegisterGauge("session", "connected", gauge))

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livetiming", Subsystem: "session", Name: "errors_total", Help: "v",
	}, []string{"type"})
	require.NoError(t, registry.RegisterCounterVec("session", "errors_total", vec))

	gvec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "livetiming", Subsystem: "supervisor", Name: "attempt", Help: "gv",
	}, []string{"run"})
	require.NoError(t, registry.RegisterGaugeVec("supervisor", "attempt", gvec))

	hist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "livetiming", Subsystem: "session", Name: "decode_seconds", Help: "h",
	})
	require.NoError(t, registry.RegisterHistogram("session", "decode_seconds", hist))
}
