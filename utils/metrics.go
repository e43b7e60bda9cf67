package utils

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const metricsNamespace = "taxi_pipeline"

// Metrics holds the per-run collectors. Each stage is a short-lived process, so values are
// pushed to a Pushgateway at the end of the run instead of being scraped.
type Metrics struct {
	registry *prometheus.Registry

	FilesProcessed *prometheus.CounterVec
	RowsWritten    *prometheus.CounterVec
	StageDuration  *prometheus.GaugeVec
	ModelMSE       prometheus.Gauge
	ModelRMSE      prometheus.Gauge
	ModelR2        prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "files_processed_total",
			Help:      "Raw files handled by a stage, by result (imported, skipped, failed, merged).",
		}, []string{"stage", "result"}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rows_written_total",
			Help:      "Rows written to the table or to an output file.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the last stage run.",
		}, []string{"stage"}),
		ModelMSE: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "model_mse",
			Help:      "Mean squared error on the held-out months.",
		}),
		ModelRMSE: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "model_rmse",
			Help:      "Root mean squared error on the held-out months.",
		}),
		ModelR2: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "model_r2",
			Help:      "Coefficient of determination on the held-out months.",
		}),
	}
	m.registry.MustRegister(m.FilesProcessed, m.RowsWritten, m.StageDuration, m.ModelMSE, m.ModelRMSE, m.ModelR2)
	return m
}

// Gatherer exposes the registry, mostly for tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Push sends every collector to the Pushgateway at url under the given job name.
// An empty url disables pushing.
func (m *Metrics) Push(url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).Push(); err != nil {
		return errors.Wrapf(err, "pushing metrics to %s", url)
	}
	return nil
}
