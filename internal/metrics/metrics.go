package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records per-stream sync activity.
type Metrics struct {
	records      *prometheus.CounterVec
	syncErrors   *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
}

// New registers the connector metrics on reg. Tests pass prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openmeteo_records_emitted_total",
			Help: "Total number of records emitted per stream",
		}, []string{"stream"}),
		syncErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openmeteo_sync_errors_total",
			Help: "Total number of failed stream reads",
		}, []string{"stream"}),
		syncDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "openmeteo_sync_duration_seconds",
			Help:    "Time taken to request and parse one stream",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stream"}),
	}
}

// ObserveRead records the outcome of one stream read. Safe on a nil receiver.
func (m *Metrics) ObserveRead(stream string, records int, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.syncDuration.WithLabelValues(stream).Observe(took.Seconds())
	if err != nil {
		m.syncErrors.WithLabelValues(stream).Inc()
		return
	}
	m.records.WithLabelValues(stream).Add(float64(records))
}
