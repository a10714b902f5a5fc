// Package metrics exposes Prometheus metrics for the advisory pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for pipeline observability. A nil
// *Metrics is valid and records nothing, so callers never guard metric
// calls.
type Metrics struct {
	TurnsTotal          *prometheus.CounterVec   // Turns by routing strategy
	TurnDuration        *prometheus.HistogramVec // End-to-end turn latency by strategy
	ModelCalls          *prometheus.CounterVec   // Provider calls by caller and outcome
	ModelCallDuration   *prometheus.HistogramVec // Provider call latency by caller
	SpecialistFailures  *prometheus.CounterVec   // Specialist consults that failed, by role
	ToolCallsTotal      *prometheus.CounterVec   // Tool executions by tool name and outcome
	QualityScore        prometheus.Histogram     // Quality gate scores
	EnhancementsTotal   prometheus.Counter       // Responses rewritten after a failed quality check
	ActiveConsultations prometheus.Gauge         // Specialist consults currently in flight
}

// NewMetrics creates and registers the pipeline metrics with the given
// registerer. A test registry works the same as the global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	turnsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_turns_total",
		Help: "Total advisory turns processed, by routing strategy",
	}, []string{"strategy"})

	turnDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aegis_turn_duration_seconds",
		Help:    "End-to-end turn latency, by routing strategy",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"strategy"})

	modelCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_model_calls_total",
		Help: "LLM provider calls, by caller and outcome",
	}, []string{"caller", "outcome"})

	modelCallDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aegis_model_call_duration_seconds",
		Help:    "LLM provider call latency, by caller",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"caller"})

	specialistFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_specialist_failures_total",
		Help: "Specialist consultations that failed, by role",
	}, []string{"role"})

	toolCallsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_tool_calls_total",
		Help: "Tool executions, by tool name and outcome",
	}, []string{"tool", "outcome"})

	qualityScore := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aegis_quality_score",
		Help:    "Quality gate scores for evaluated responses",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	})

	enhancementsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aegis_enhancements_total",
		Help: "Responses rewritten after failing the quality gate",
	})

	activeConsultations := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aegis_active_consultations",
		Help: "Specialist consultations currently in flight",
	})

	reg.MustRegister(turnsTotal, turnDuration, modelCalls, modelCallDuration, specialistFailures, toolCallsTotal, qualityScore, enhancementsTotal, activeConsultations)

	return &Metrics{
		TurnsTotal:          turnsTotal,
		TurnDuration:        turnDuration,
		ModelCalls:          modelCalls,
		ModelCallDuration:   modelCallDuration,
		SpecialistFailures:  specialistFailures,
		ToolCallsTotal:      toolCallsTotal,
		QualityScore:        qualityScore,
		EnhancementsTotal:   enhancementsTotal,
		ActiveConsultations: activeConsultations,
	}
}

// ObserveTurn records one completed turn.
func (m *Metrics) ObserveTurn(strategy string, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(strategy).Inc()
	m.TurnDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// ObserveModelCall records one provider round trip.
func (m *Metrics) ObserveModelCall(caller string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.ModelCalls.WithLabelValues(caller, outcome).Inc()
	m.ModelCallDuration.WithLabelValues(caller).Observe(d.Seconds())
}

// ObserveSpecialistFailure records a specialist dropping out of a turn.
func (m *Metrics) ObserveSpecialistFailure(role string) {
	if m == nil {
		return
	}
	m.SpecialistFailures.WithLabelValues(role).Inc()
}

// ObserveToolCall records one tool execution.
func (m *Metrics) ObserveToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// ObserveQuality records a quality gate verdict.
func (m *Metrics) ObserveQuality(score float64, enhanced bool) {
	if m == nil {
		return
	}
	m.QualityScore.Observe(score)
	if enhanced {
		m.EnhancementsTotal.Inc()
	}
}

// ConsultationStarted and ConsultationFinished track in-flight consults.
func (m *Metrics) ConsultationStarted() {
	if m == nil {
		return
	}
	m.ActiveConsultations.Inc()
}

func (m *Metrics) ConsultationFinished() {
	if m == nil {
		return
	}
	m.ActiveConsultations.Dec()
}
