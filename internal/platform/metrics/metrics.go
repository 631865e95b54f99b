package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the telemetry pipeline.
type Metrics struct {
	SubjectsCreated prometheus.Counter
	SamplesIngested prometheus.Counter
	SamplesRejected prometheus.Counter
}

// New registers the metrics on reg; pass prometheus.DefaultRegisterer in mains
// and a private registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SubjectsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "presence_subjects_created_total",
			Help: "Total number of subjects registered.",
		}),
		SamplesIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "presence_samples_ingested_total",
			Help: "Total number of location samples appended to the store.",
		}),
		SamplesRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "presence_samples_rejected_total",
			Help: "Total number of ingestion requests rejected before persistence.",
		}),
	}
}
