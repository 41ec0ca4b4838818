// Package metrics instruments the Rule Runner (C8) and Score Engine (C9)
// with Prometheus collectors, grounded on mercator-hq/jupiter's
// pkg/telemetry/metrics package (results-by-kind counter, per-rule
// latency histogram, per-system score gauge).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics tracks Rule Runner and Score Engine activity.
type RunMetrics struct {
	resultsTotal    *prometheus.CounterVec
	ruleDuration    *prometheus.HistogramVec
	hookAbortsTotal *prometheus.CounterVec
	scoreGauge      *prometheus.GaugeVec
}

// NewRunMetrics creates and registers the collectors with registry.
func NewRunMetrics(namespace string, registry *prometheus.Registry) *RunMetrics {
	m := &RunMetrics{
		resultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "rule_results_total",
				Help:      "Total RuleResults emitted, by outcome kind.",
			},
			[]string{"result"},
		),
		ruleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "rule_evaluation_duration_seconds",
				Help:      "Time to evaluate a single Rule, including check dispatch.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~0.8s
			},
			[]string{"rule_id"},
		),
		hookAbortsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "hook_aborts_total",
				Help:      "Total HookAbort errors surfaced during Evaluate, by hook.",
			},
			[]string{"hook"},
		),
		scoreGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "score",
				Name:      "value",
				Help:      "Most recently computed Score, by scoring system URI.",
			},
			[]string{"system"},
		),
	}
	registry.MustRegister(m.resultsTotal, m.ruleDuration, m.hookAbortsTotal, m.scoreGauge)
	return m
}

// RecordResult records one emitted RuleResult's outcome.
func (m *RunMetrics) RecordResult(result string) {
	m.resultsTotal.WithLabelValues(result).Inc()
}

// RecordRuleDuration records how long a single Rule took to evaluate.
func (m *RunMetrics) RecordRuleDuration(ruleID string, d time.Duration) {
	m.ruleDuration.WithLabelValues(ruleID).Observe(d.Seconds())
}

// RecordHookAbort records a HookAbort surfaced from either hook.
func (m *RunMetrics) RecordHookAbort(hook string) {
	m.hookAbortsTotal.WithLabelValues(hook).Inc()
}

// RecordScore records a freshly computed Score.
func (m *RunMetrics) RecordScore(system string, score float64) {
	m.scoreGauge.WithLabelValues(system).Set(score)
}
