package speech

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики синтеза речи.

const metricsNamespace = "heirloom"

const (
	statusSuccess = "success"
	statusError   = "error"
)

var (
	// synthesisDuration измеряет время синтеза.
	// Labels:
	//   - provider: fish, yandex
	//   - status: success, error
	synthesisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "speech",
			Name:      "synthesis_duration_seconds",
			Help:      "Duration of speech synthesis calls in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 10, 20, 30, 60, 90},
		},
		[]string{"provider", "status"},
	)

	synthesisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "speech",
			Name:      "synthesis_total",
			Help:      "Total number of speech synthesis calls",
		},
		[]string{"provider", "status"},
	)

	synthesisBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "speech",
			Name:      "audio_bytes_total",
			Help:      "Total bytes of synthesized audio",
		},
		[]string{"provider"},
	)
)

func recordSynthesis(provider, status string, d time.Duration, bytes int) {
	synthesisDuration.WithLabelValues(provider, status).Observe(d.Seconds())
	synthesisTotal.WithLabelValues(provider, status).Inc()
	if bytes > 0 {
		synthesisBytes.WithLabelValues(provider).Add(float64(bytes))
	}
}
