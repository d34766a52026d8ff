package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gaugeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "capture_connections_active",
		Help: "Open capture sockets",
	})

	metricFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_frames_total",
		Help: "Frames read from capture clients",
	}, []string{"kind"}) // text, binary, invalid

	metricAuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_auth_failures_total",
		Help: "Capture socket upgrades rejected for a bad or missing token",
	})

	metricEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_events_dropped_total",
		Help: "Session events dropped because the client outbox was full",
	})
)
