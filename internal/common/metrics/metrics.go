// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_turns_completed_total",
			Help: "Total number of conversation turns completed, by routing path",
		},
		[]string{"path", "category"},
	)

	TurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_turns_failed_total",
			Help: "Total number of conversation turns ending in an error phase",
		},
		[]string{"error_code"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "engine_turn_duration_seconds",
			Help: "Duration of turn processing in seconds",
		},
		[]string{"path"},
	)

	MCQPrompts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_mcq_prompts_total",
			Help: "Total number of clarification cards raised, by card type",
		},
		[]string{"mcq_type"},
	)

	MCQSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_mcq_suppressed_total",
			Help: "Clarification prompts suppressed by the chain-fatigue policy",
		},
	)

	ResolverOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_tool_resolutions_total",
			Help: "Tool reference resolutions, by method (exact, alias, similarity, deferred, none)",
		},
		[]string{"method"},
	)

	PipelineFindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_pipeline_findings_total",
			Help: "Validation findings reported on authored pipelines, by code",
		},
		[]string{"code"},
	)
)
