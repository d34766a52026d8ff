package report

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "report_requests_total",
		Help: "Grading requests issued",
	})

	metricResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_results_total",
		Help: "Grading results applied by status",
	}, []string{"status"})

	metricStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "report_stale_responses_total",
		Help: "Grading responses dropped because the round had moved on",
	})
)
