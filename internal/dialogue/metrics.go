package dialogue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "heirloom"

// Turn outcomes.
const (
	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Dialogue turns by outcome",
		},
		[]string{"outcome"},
	)

	turnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "dialogue",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end duration of a dialogue turn",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	// optionsEmptyTotal: ответ есть, а вариантов для игрока нет.
	optionsEmptyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "dialogue",
			Name:      "options_empty_total",
			Help:      "Turns delivered without reply options",
		},
	)
)

func recordTurn(outcome string, d time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	if outcome == outcomeOK || outcome == outcomeDegraded {
		turnDuration.Observe(d.Seconds())
	}
}
