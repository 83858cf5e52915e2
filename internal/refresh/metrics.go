package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "vetsync_refresh"

// Collector is a prometheus.Collector that collects metrics about
// background refreshes.
type Collector struct {
	scheduled *prometheus.CounterVec
	executed  *prometheus.CounterVec
	failed    *prometheus.CounterVec
	inFlight  prometheus.Gauge
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		scheduled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "scheduled_total",
				Help:      "The number of refresh requests, including coalesced ones.",
			}, []string{"entity"},
		),
		executed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "executed_total",
				Help:      "The number of refreshes that actually ran.",
			}, []string{"entity"},
		),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "failed_total",
				Help:      "The number of refreshes that returned an error or panicked.",
			}, []string{"entity"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "in_flight",
				Help:      "The number of refreshes currently running.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.scheduled.Describe(ch)
	c.executed.Describe(ch)
	c.failed.Describe(ch)
	c.inFlight.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.scheduled.Collect(ch)
	c.executed.Collect(ch)
	c.failed.Collect(ch)
	c.inFlight.Collect(ch)
}
