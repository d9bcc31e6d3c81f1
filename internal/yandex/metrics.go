package yandex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opRecognize  = "recognize"
	opSynthesize = "synthesize"
)

var (
	// Вызовы SpeechKit по операции и статусу
	speechKitCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heirloom",
			Name:      "speechkit_calls_total",
			Help:      "Total SpeechKit calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	speechKitCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "heirloom",
			Name:      "speechkit_call_duration_seconds",
			Help:      "SpeechKit call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)
)

func recordCall(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	speechKitCallsTotal.WithLabelValues(op, status).Inc()
	speechKitCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
