// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_generations_completed_total",
			Help: "Total number of generations completed",
		},
		[]string{"tenant_type"},
	)

	GenerationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_generations_failed_total",
			Help: "Total number of generations failed",
		},
		[]string{"stage", "error_code"},
	)

	GenerationStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_generation_stage_duration_seconds",
			Help: "Duration of each generation stage in seconds",
		},
		[]string{"stage"},
	)

	CompressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_compressions_total",
			Help: "Total number of prompt compressions by outcome",
		},
		[]string{"outcome"},
	)

	ElementsProvisioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_elements_provisioned_total",
			Help: "Total number of elements created by provisioning runs",
		},
		[]string{"tenant_type"},
	)

	RetrievalCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_retrieval_cache_total",
			Help: "Retrieval cache lookups by result",
		},
		[]string{"result"},
	)
)
