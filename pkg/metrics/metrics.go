// Package metrics exposes the receiver pipeline's counters and gauges via
// Prometheus (github.com/prometheus/client_golang), grounded on the
// teacher's promauto usage in its dialog package rather than the
// hand-rolled histogram in pkg/rtp/metrics.go (see DESIGN.md).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the receiver pipeline emits, one set of
// label values per session (source_id).
type Registry struct {
	PacketsReceived  *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	RepairsDropped   *prometheus.CounterVec
	FECReconstructed *prometheus.CounterVec
	FECLost          *prometheus.CounterVec
	DepacketizerDrops *prometheus.CounterVec
	WatchdogTrips    *prometheus.CounterVec
	Latency          *prometheus.GaugeVec
	Sigma            *prometheus.GaugeVec
	SessionsActive   prometheus.Gauge
}

// New registers every metric against reg (pass prometheus.NewRegistry()
// for test isolation, or prometheus.DefaultRegisterer in production).
func New(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		PacketsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiopipe",
			Subsystem: "receiver",
			Name:      "packets_received_total",
			Help:      "Packets routed to a session's input queue.",
		}, []string{"source_id"}),
		PacketsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiopipe",
			Subsystem: "receiver",
			Name:      "packets_dropped_total",
			Help:      "Source packets dropped from the input ring on overflow.",
		}, []string{"source_id"}),
		RepairsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiopipe",
			Subsystem: "receiver",
			Name:      "repairs_dropped_total",
			Help:      "Repair packets dropped from the input ring on overflow.",
		}, []string{"source_id"}),
		FECReconstructed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiopipe",
			Subsystem: "fec",
			Name:      "reconstructed_total",
			Help:      "Source symbols recovered by the FEC decoder.",
		}, []string{"source_id", "scheme"}),
		FECLost: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiopipe",
			Subsystem: "fec",
			Name:      "lost_total",
			Help:      "Source symbols that remained permanently missing after a block closed.",
		}, []string{"source_id", "scheme"}),
		DepacketizerDrops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiopipe",
			Subsystem: "depacketizer",
			Name:      "stale_drops_total",
			Help:      "Packets discarded by the depacketizer because they arrived behind the cursor.",
		}, []string{"source_id"}),
		WatchdogTrips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audiopipe",
			Subsystem: "watchdog",
			Name:      "trips_total",
			Help:      "Times a session was marked dead by its watchdog, by cause.",
		}, []string{"source_id", "cause"}),
		Latency: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "audiopipe",
			Subsystem: "resampler",
			Name:      "latency_error_seconds",
			Help:      "Filtered capture-to-playback latency error.",
		}, []string{"source_id"}),
		Sigma: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "audiopipe",
			Subsystem: "resampler",
			Name:      "sigma_ratio",
			Help:      "Current resampler scale factor.",
		}, []string{"source_id"}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "audiopipe",
			Subsystem: "receiver",
			Name:      "sessions_active",
			Help:      "Sessions currently in the active state.",
		}),
	}
}
