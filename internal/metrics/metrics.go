package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uvdose/uvdose/pkg/types"
)

const namespace = "uvdose"

// Metrics owns a private registry with the calculation collectors.
type Metrics struct {
	reg         *prometheus.Registry
	outcomes    *prometheus.CounterVec
	nativeCalls *prometheus.HistogramVec
}

// New creates the collectors and registers them together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Calculation outcomes by operation, status and failure kind.",
		}, []string{"op", "status", "kind"}),
		nativeCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "native_call_duration_seconds",
			Help:      "Latency of calls into the native calculation library.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"function"}),
	}
	m.reg.MustRegister(
		m.outcomes,
		m.nativeCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordOutcome counts one calculation result.
func (m *Metrics) RecordOutcome(op string, o types.Outcome) {
	kind := "none"
	if o.Error != nil {
		kind = string(o.Error.Kind)
	}
	m.outcomes.WithLabelValues(op, o.Status, kind).Inc()
}

// ObserveNativeCall records the duration of one native call.
func (m *Metrics) ObserveNativeCall(function string, elapsed time.Duration) {
	m.nativeCalls.WithLabelValues(function).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Gatherer exposes the registry for inspection.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }
