package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_state_transitions_total",
		Help: "Session phase transitions",
	}, []string{"from", "to"})

	metricInvalidTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_invalid_transitions_total",
		Help: "Operations rejected by the phase guard",
	}, []string{"op"})

	// outcome: armed, offered, suppressed_protected_time, suppressed_clock_stopped,
	// unavailable, empty, accepted, rejected, expired, cancelled
	metricPOI = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_poi_events_total",
		Help: "Point of information lifecycle events",
	}, []string{"outcome"})

	metricStaleResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_stale_responses_total",
		Help: "Collaborator responses dropped because their speech or round had ended",
	}, []string{"kind"})

	metricFragments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_capture_fragments_total",
		Help: "Transcript fragments received during speeches",
	}, []string{"kind"})

	metricEmptyCaptures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orch_empty_captures_total",
		Help: "Speeches completed with no captured text",
	})

	metricSpeechSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orch_speech_duration_seconds",
		Help:    "Speech clock reading at completion",
		Buckets: prometheus.LinearBuckets(60, 60, 10),
	})
)
