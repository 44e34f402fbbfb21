package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// SchedulingMetrics records timeslot transitions. A nil *SchedulingMetrics is
// valid and records nothing.
type SchedulingMetrics struct {
	transitions metric.Int64Counter
	bookings    metric.Int64Counter
	swept       metric.Int64Counter
	bookLatency metric.Float64Histogram
}

// NewSchedulingMetrics registers the instruments on the global meter
// provider, which is a no-op until InitTelemetry installs the Prometheus one.
func NewSchedulingMetrics() *SchedulingMetrics {
	meter := otel.Meter(tracerName)

	transitions, _ := meter.Int64Counter(
		"bookspot_timeslot_transitions_total",
		metric.WithDescription("Committed timeslot transitions by kind"),
		metric.WithUnit("{transition}"),
	)
	bookings, _ := meter.Int64Counter(
		"bookspot_bookings_total",
		metric.WithDescription("Booking attempts by result"),
		metric.WithUnit("{attempt}"),
	)
	swept, _ := meter.Int64Counter(
		"bookspot_sweep_completed_total",
		metric.WithDescription("Timeslots completed by the sweep"),
		metric.WithUnit("{timeslot}"),
	)
	bookLatency, _ := meter.Float64Histogram(
		"bookspot_booking_duration_ms",
		metric.WithDescription("Time spent in the locked booking transaction"),
		metric.WithUnit("ms"),
	)

	return &SchedulingMetrics{
		transitions: transitions,
		bookings:    bookings,
		swept:       swept,
		bookLatency: bookLatency,
	}
}

func (m *SchedulingMetrics) Transition(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// Booking records one booking attempt. result is "ok", "conflict" or "error".
func (m *SchedulingMetrics) Booking(ctx context.Context, result string, took time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.bookings.Add(ctx, 1, attrs)
	m.bookLatency.Record(ctx, float64(took.Microseconds())/1000, attrs)
}

func (m *SchedulingMetrics) Swept(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.swept.Add(ctx, n)
}

// StartSpan starts an internal span on the package tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}
