// Package metrics exposes gatekeeper activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BradenHooton/admingate/internal/gatekeeper"
)

// Collector implements gatekeeper.Recorder on top of Prometheus collectors
type Collector struct {
	outcomes      *prometheus.CounterVec
	unlocks       prometheus.Counter
	invalidations prometheus.Counter
	active        prometheus.Gauge
	alerts        *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admingate_login_outcomes_total",
			Help: "Gatekeeper operation results by outcome",
		}, []string{"outcome"}),
		unlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admingate_lockouts_cleared_total",
			Help: "Lockouts that ran out and returned a tab to unlocked",
		}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admingate_session_invalidations_total",
			Help: "Sessions ended because another context removed the session record",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "admingate_active_gatekeepers",
			Help: "Live gatekeepers held by the registry",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admingate_lockout_alerts_total",
			Help: "Lockout alert deliveries by result",
		}, []string{"result"}),
	}

	reg.MustRegister(c.outcomes, c.unlocks, c.invalidations, c.active, c.alerts)
	return c
}

func (c *Collector) RecordOutcome(outcome gatekeeper.Outcome) {
	c.outcomes.WithLabelValues(string(outcome)).Inc()
}

func (c *Collector) RecordUnlock() {
	c.unlocks.Inc()
}

func (c *Collector) RecordInvalidation() {
	c.invalidations.Inc()
}

func (c *Collector) SetActiveGatekeepers(n int) {
	c.active.Set(float64(n))
}

// RecordAlert counts a lockout alert delivery attempt
func (c *Collector) RecordAlert(err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	c.alerts.WithLabelValues(result).Inc()
}

// Handler serves the Prometheus exposition format for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ gatekeeper.Recorder = (*Collector)(nil)
