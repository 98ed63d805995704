package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	filesTotal    *prometheus.CounterVec
	fileDuration  *prometheus.HistogramVec
	filesInFlight prometheus.Gauge
	retriesTotal  *prometheus.CounterVec
	runResults    *prometheus.GaugeVec
	runDuration   prometheus.Gauge
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	filesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kp",
			Subsystem: "pipeline",
			Name:      "files_total",
			Help:      "Total processed intake files by kind, final stage and status.",
		},
		[]string{"service", "kind", "stage", "status"},
	)
	fileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kp",
			Subsystem: "pipeline",
			Name:      "file_duration_seconds",
			Help:      "End-to-end processing duration per file in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "kind", "status"},
	)
	filesInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kp",
			Subsystem: "pipeline",
			Name:      "files_in_flight",
			Help:      "Number of files currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kp",
			Subsystem: "llm",
			Name:      "retries_total",
			Help:      "Retried external calls by operation.",
		},
		[]string{"service", "operation"},
	)
	runResults := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kp",
			Subsystem: "run",
			Name:      "results",
			Help:      "Result counts of the last completed run.",
		},
		[]string{"service", "result"},
	)
	runDuration := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kp",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall clock duration of the last completed run.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(filesTotal, fileDuration, filesInFlight, retriesTotal, runResults, runDuration)

	return &PipelineMetrics{
		registry:      registry,
		service:       service,
		filesTotal:    filesTotal,
		fileDuration:  fileDuration,
		filesInFlight: filesInFlight,
		retriesTotal:  retriesTotal,
		runResults:    runResults,
		runDuration:   runDuration,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *PipelineMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *PipelineMetrics) StartFile(domain.FileKind) {
	m.filesInFlight.Inc()
}

func (m *PipelineMetrics) FinishFile(kind domain.FileKind, stage string, err error, seconds float64) {
	m.filesInFlight.Dec()

	status := "success"
	if err != nil {
		status = domain.ErrorKindName(err)
	}

	m.filesTotal.WithLabelValues(m.service, string(kind), stage, status).Inc()
	m.fileDuration.WithLabelValues(m.service, string(kind), status).Observe(seconds)
}

// ObserveRetry matches resilience.RetryObserver.
func (m *PipelineMetrics) ObserveRetry(operation string, _ int, _ error) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *PipelineMetrics) ObserveRun(report *domain.RunReport) {
	if report == nil {
		return
	}
	m.runResults.WithLabelValues(m.service, "success").Set(float64(report.Results.Success))
	m.runResults.WithLabelValues(m.service, "failed").Set(float64(report.Results.Failed))
	m.runResults.WithLabelValues(m.service, "skipped").Set(float64(report.Results.Skipped))
	m.runResults.WithLabelValues(m.service, "duplicate").Set(float64(report.Results.Duplicates))
	m.runResults.WithLabelValues(m.service, "manual_review").Set(float64(report.Results.ManualReview))
	if !report.CompletedAt.IsZero() {
		m.runDuration.Set(report.CompletedAt.Sub(report.StartedAt).Seconds())
	}
}
