package bench

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are package-level prometheus vars scoped to bench/instrument
// lifecycle.
var (
	InstrumentsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pytestlab_instruments_connected",
		Help: "Number of instruments currently connected in this process.",
	})

	ConnectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pytestlab_connect_failures_total",
			Help: "Instrument connect failures by alias.",
		},
		[]string{"alias"},
	)

	SafetyRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pytestlab_safety_rejections_total",
			Help: "Safety-limit rejections by alias and quantity.",
		},
		[]string{"alias", "quantity"},
	)

	CloseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pytestlab_close_failures_total",
			Help: "Instrument close failures by alias.",
		},
		[]string{"alias"},
	)
)

var registered = false

// RegisterMetrics registers the bench-level metrics exactly once per
// process, tolerating repeated calls across tests.
func RegisterMetrics() {
	if registered {
		return
	}
	registered = true
	prometheus.MustRegister(InstrumentsConnected, ConnectFailures, SafetyRejections, CloseFailures)
}
