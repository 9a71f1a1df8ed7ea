package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/plainlaw/internal/core/domain"
	"github.com/kirillkom/plainlaw/internal/core/ports"
)

// PipelineMetrics records stage timings, outcomes and safety findings. It
// satisfies ports.PipelineObserver.
type PipelineMetrics struct {
	service string

	stageDuration  *prometheus.HistogramVec
	outcomesTotal  *prometheus.CounterVec
	findingsTotal  *prometheus.CounterVec
	breakerChanges *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registry prometheus.Registerer) *PipelineMetrics {
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plainlaw",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds by stage and status.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "stage", "status"},
	)
	outcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plainlaw",
			Subsystem: "pipeline",
			Name:      "outcomes_total",
			Help:      "Processed documents by document type and outcome.",
		},
		[]string{"service", "doc_type", "outcome"},
	)
	findingsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plainlaw",
			Subsystem: "safety",
			Name:      "findings_total",
			Help:      "Safety findings reported by code and severity.",
		},
		[]string{"service", "code", "severity"},
	)
	breakerChanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plainlaw",
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions by operation.",
		},
		[]string{"service", "operation", "to"},
	)

	registry.MustRegister(stageDuration, outcomesTotal, findingsTotal, breakerChanges)

	return &PipelineMetrics{
		service:        service,
		stageDuration:  stageDuration,
		outcomesTotal:  outcomesTotal,
		findingsTotal:  findingsTotal,
		breakerChanges: breakerChanges,
	}
}

func (m *PipelineMetrics) ObserveStage(stage domain.PipelineState, duration time.Duration, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	m.stageDuration.WithLabelValues(m.service, string(stage), status).Observe(duration.Seconds())
}

// RecordOutcome counts a finished request. Failures are labeled with the
// response error kind.
func (m *PipelineMetrics) RecordOutcome(result *domain.ProcessDocumentResult, err error) {
	if err != nil {
		m.outcomesTotal.WithLabelValues(m.service, "unknown", domain.ErrorKindName(err)).Inc()
		return
	}
	if result == nil {
		return
	}

	outcome := "success"
	if result.HasCritical() {
		outcome = "success_with_critical_findings"
	}
	m.outcomesTotal.WithLabelValues(m.service, string(result.DocType), outcome).Inc()
	for _, finding := range result.Findings {
		m.findingsTotal.WithLabelValues(m.service, string(finding.Code), string(finding.Severity)).Inc()
	}
}

// RecordBreakerTransition matches resilience.Config.OnStateChange.
func (m *PipelineMetrics) RecordBreakerTransition(operation, _, to string) {
	m.breakerChanges.WithLabelValues(m.service, operation, to).Inc()
}

type recordingProcessor struct {
	next    ports.DocumentProcessor
	metrics *PipelineMetrics
}

// RecordingProcessor wraps next so every outcome is counted.
func RecordingProcessor(next ports.DocumentProcessor, m *PipelineMetrics) ports.DocumentProcessor {
	return recordingProcessor{next: next, metrics: m}
}

func (p recordingProcessor) Process(ctx context.Context, input domain.RawInput) (*domain.ProcessDocumentResult, error) {
	result, err := p.next.Process(ctx, input)
	p.metrics.RecordOutcome(result, err)
	return result, err
}
