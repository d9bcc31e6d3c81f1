package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики цикла генерации с валидацией.

const metricsNamespace = "heirloom"

var (
	// generationAttemptsTotal считает попытки генерации.
	// Labels:
	//   - agent: persona, scriptwriter
	//   - outcome: success, validation, provider
	generationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "attempts_total",
			Help:      "Total number of generation attempts by outcome",
		},
		[]string{"agent", "outcome"},
	)

	// generationResultsTotal считает итоговые результаты цикла.
	// Labels:
	//   - agent: persona, scriptwriter
	//   - result: none, exhausted, canceled
	generationResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "results_total",
			Help:      "Total number of generation loop results by failure kind",
		},
		[]string{"agent", "result"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Duration of the whole generation loop in seconds",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 7, 10, 15, 20, 30, 45, 60, 120},
		},
		[]string{"agent"},
	)
)

func recordAttempt(agent AgentType, outcome string) {
	generationAttemptsTotal.WithLabelValues(string(agent), outcome).Inc()
}

func recordResult(agent AgentType, failure FailureKind, d time.Duration) {
	generationResultsTotal.WithLabelValues(string(agent), failure.String()).Inc()
	generationDuration.WithLabelValues(string(agent)).Observe(d.Seconds())
}
