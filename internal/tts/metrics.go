package tts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// status is ok, error, http_error or unconfigured.
	ttsSynthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "debatecoach",
		Subsystem: "tts",
		Name:      "speeches_synthesized_total",
		Help:      "AI speech synthesis attempts.",
	}, []string{"status"})

	ttsTotalDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "debatecoach",
		Subsystem: "tts",
		Name:      "synthesis_ms",
		Help:      "Wall time to turn one speech into audio.",
		Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
	})

	ttsElevenLabsLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "debatecoach",
		Subsystem: "tts",
		Name:      "elevenlabs_first_byte_ms",
		Help:      "Time until ElevenLabs answered with headers.",
		Buckets:   []float64{50, 100, 200, 400, 800, 1600, 3200},
	})

	ttsAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "debatecoach",
		Subsystem: "tts",
		Name:      "audio_bytes_total",
		Help:      "MP3 bytes received for AI speeches.",
	})
)
