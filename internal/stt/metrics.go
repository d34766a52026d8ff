package stt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func sttOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: "debatecoach", Subsystem: "stt", Name: name, Help: help}
}

var (
	metricAudioBytes     = promauto.NewCounter(sttOpts("audio_bytes_total", "Capture audio bytes queued for Deepgram."))
	metricFrames         = promauto.NewCounter(sttOpts("audio_frames_total", "Capture audio frames queued for Deepgram."))
	metricDrops          = promauto.NewCounter(sttOpts("audio_frames_dropped_total", "Audio frames dropped because the send queue was full."))
	metricReconnects     = promauto.NewCounter(sttOpts("reconnects_total", "Deepgram reconnect attempts."))
	metricCircuitOpens   = promauto.NewCounter(sttOpts("circuit_opened_total", "Times repeated dial failures opened the breaker."))
	metricProviderErrors = promauto.NewCounter(sttOpts("provider_errors_total", "Error messages sent by Deepgram."))

	metricEmptyFinalSkipped = promauto.NewCounter(sttOpts("empty_finals_skipped_total", "Final results with no text."))
	metricEventDrops        = promauto.NewCounter(sttOpts("fragments_dropped_total", "Transcript fragments dropped because the session was not reading."))

	// source is provider or interim_fallback.
	metricFinalEmitted = promauto.NewCounterVec(sttOpts("finals_total", "Final fragments handed to the session."), []string{"source"})

	// type is speech_started or utterance_end.
	metricUtteranceEvents = promauto.NewCounterVec(sttOpts("boundaries_total", "Speech boundary messages from Deepgram."), []string{"type"})

	metricConnectMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "debatecoach",
		Subsystem: "stt",
		Name:      "dial_ms",
		Help:      "Deepgram websocket dial time in milliseconds.",
		Buckets:   []float64{25, 50, 100, 200, 400, 800, 1600, 3200},
	})

	gaugeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "debatecoach", Subsystem: "stt", Name: "streams_open",
		Help: "Capture sockets with an open transcription stream.",
	})
	gaugeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "debatecoach", Subsystem: "stt", Name: "send_queue_frames",
		Help: "Frames waiting in the most recently sampled send queue.",
	})
)
