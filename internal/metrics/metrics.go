// Package metrics exposes check and dispatch counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder methods are safe on a nil receiver so callers can run without
// metrics wired.
type Recorder struct {
	checks     *prometheus.CounterVec
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarwatch_checks_total",
			Help: "Presence checks by site and outcome",
		}, []string{"site", "outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarwatch_dispatches_total",
			Help: "Notification deliveries by site and result",
		}, []string{"site", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scholarwatch_check_duration_seconds",
			Help:    "Wall time of one check including notification",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"site"}),
	}
	if reg != nil {
		reg.MustRegister(r.checks, r.dispatches, r.duration)
	}
	return r
}

// ObserveCheck records one presence check. outcome is "found", "absent" or
// "search_error".
func (r *Recorder) ObserveCheck(site, outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.checks.WithLabelValues(site, outcome).Inc()
	r.duration.WithLabelValues(site).Observe(took.Seconds())
}

func (r *Recorder) ObserveDispatch(site string, delivered bool) {
	if r == nil {
		return
	}
	result := "failed"
	if delivered {
		result = "sent"
	}
	r.dispatches.WithLabelValues(site, result).Inc()
}
