package content

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	metricCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_calls_total",
		Help: "Content collaborator calls by operation and status",
	}, []string{"op", "status"})

	metricCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "content_call_latency_ms",
		Help:    "Content collaborator call latency",
		Buckets: prometheus.ExponentialBuckets(50, 1.8, 12),
	}, []string{"op"})

	metricCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "content_cache_total",
		Help: "Structured-notes cache lookups",
	}, []string{"result"})
)

var (
	tracer = otel.Tracer("debatecoach/content")
	meter  = otel.Meter("debatecoach/content")

	otelCalls, _ = meter.Int64Counter("content.calls",
		metric.WithDescription("Content collaborator calls"))
)

// Instrument wraps one collaborator call in a span and records its outcome
// under the given backend label.
func Instrument(ctx context.Context, backend, op string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "content."+op,
		trace.WithAttributes(attribute.String("content.backend", backend)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metricCallLatency.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metricCalls.WithLabelValues(op, status).Inc()
	if otelCalls != nil {
		otelCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		))
	}
	return err
}
