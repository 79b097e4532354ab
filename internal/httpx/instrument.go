package httpx

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Instruments holds the Prometheus collectors for query handling. It also
// implements metrics.Observer.
type Instruments struct {
	queries *prometheus.CounterVec
	stages  *prometheus.HistogramVec
	rowsIn  prometheus.Histogram
	rowsOut prometheus.Histogram
}

func NewInstruments(reg prometheus.Registerer) *Instruments {
	in := &Instruments{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quasr_queries_total",
			Help: "Analytics queries handled, by outcome.",
		}, []string{"status"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quasr_query_stage_seconds",
			Help:    "Time spent per query stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		rowsIn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quasr_input_rows",
			Help:    "Rows returned by the database per query.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		rowsOut: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quasr_output_rows",
			Help:    "Output rows produced per query.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
	reg.MustRegister(in.queries, in.stages, in.rowsIn, in.rowsOut)
	return in
}

func (in *Instruments) ObserveStage(stage string, d time.Duration) {
	in.stages.WithLabelValues(stage).Observe(d.Seconds())
}

func (in *Instruments) ObserveRows(rowsIn, rowsOut int) {
	in.rowsIn.Observe(float64(rowsIn))
	in.rowsOut.Observe(float64(rowsOut))
}

func (in *Instruments) countQuery(status string) {
	in.queries.WithLabelValues(status).Inc()
}
