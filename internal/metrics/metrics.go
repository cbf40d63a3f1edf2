package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Collector exports ledger engine metrics to Prometheus
type Collector struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	volume     *prometheus.CounterVec
	gatherer   prometheus.Gatherer
}

// New registers the ledger metrics on a fresh registry
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Ledger operations by type and result",
			},
			[]string{"type", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger units",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"type"},
		),
		volume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_volume_total",
				Help: "Committed amount moved by transaction type",
			},
			[]string{"type"},
		),
		gatherer: reg,
	}
	reg.MustRegister(c.operations, c.duration, c.volume)
	return c
}

// RecordOperation counts one operation outcome and its duration
func (c *Collector) RecordOperation(op, result string, d time.Duration) {
	c.operations.WithLabelValues(op, result).Inc()
	c.duration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordVolume adds a committed amount to the volume counter
func (c *Collector) RecordVolume(op string, amount decimal.Decimal) {
	c.volume.WithLabelValues(op).Add(amount.InexactFloat64())
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
