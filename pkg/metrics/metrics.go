// Package metrics exposes the coordinator's Prometheus instrumentation:
// command throughput and latency, queue depth, and the Source of
// Truth's entry/version counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "share_coordinator_commands_total",
			Help: "Total number of commands applied by the coordinator, by tag and outcome",
		},
		[]string{"tag", "outcome"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "share_coordinator_command_duration_seconds",
			Help:    "Time taken to apply a command, by tag",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tag"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "share_coordinator_queue_depth",
			Help: "Number of commands currently buffered on the command channel",
		},
	)

	SoTEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "share_sot_entries",
			Help: "Number of entries currently held in the Source of Truth",
		},
	)

	SoTGlobalVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "share_sot_global_version",
			Help: "Highest version number assigned to any Source of Truth entry",
		},
	)

	ReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "share_reconnects_total",
			Help: "Total number of entries updated by a RECONNECT_ALL pass",
		},
	)

	BarrierWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "share_proxy_barrier_wait_seconds",
			Help:    "Time a proxy spent polling for its own prior writes to become visible",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(SoTEntries)
	prometheus.MustRegister(SoTGlobalVersion)
	prometheus.MustRegister(ReconnectsTotal)
	prometheus.MustRegister(BarrierWaitDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
