// Package metrics exposes privd's ambient Prometheus instrumentation:
// reactor connection gauges, check and decision-cache hit/miss/stale
// counters, and a monitor-ring append counter, registered the way the
// teacher's
// internal/adapter/inbound/http/metrics.go registers its own metric set.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the daemon updates.
type Metrics struct {
	ConnectionsActive *prometheus.GaugeVec
	FramesTotal       *prometheus.CounterVec
	ChecksTotal       *prometheus.CounterVec
	CacheTotal        *prometheus.CounterVec
	MonitorAppends    prometheus.Counter
	AdminWritesTotal  *prometheus.CounterVec
}

// New creates and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ConnectionsActive: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "privd",
				Name:      "connections_active",
				Help:      "Number of currently open connections per channel",
			},
			[]string{"channel"}, // client|admin|agent
		),
		FramesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "privd",
				Name:      "frames_total",
				Help:      "Total frames processed per channel",
			},
			[]string{"channel"},
		),
		ChecksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "privd",
				Name:      "checks_total",
				Help:      "Total policy checks by terminal decision",
			},
			[]string{"decision"}, // allow|deny|suspended
		),
		CacheTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "privd",
				Name:      "decision_cache_total",
				Help:      "Decision cache lookups by outcome",
			},
			[]string{"outcome"}, // hit|miss|stale
		),
		MonitorAppends: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "privd",
				Name:      "monitor_appends_total",
				Help:      "Total entries appended to the monitor ring",
			},
		),
		AdminWritesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "privd",
				Name:      "admin_writes_total",
				Help:      "Total admin mutation requests by result",
			},
			[]string{"result"}, // ok|error
		),
	}
}
