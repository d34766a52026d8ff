package loop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPulseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loop_pulse_duration_seconds",
		Help:    "Time to tick every live session once",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	gaugeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loop_sessions",
		Help: "Sessions ticked by the last pulse",
	})

	metricDispatch = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loop_capture_messages_total",
		Help: "Capture messages applied to sessions by type and result",
	}, []string{"type", "result"})
)
