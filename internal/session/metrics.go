package session

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type sessionMetrics struct {
	partialTicks  metric.Int64Counter
	ticksSkipped  metric.Int64Counter
	inferences    metric.Int64Counter
	eventsEmitted metric.Int64Counter
}

func newSessionMetrics() *sessionMetrics {
	meter := otel.Meter("noteinsight/session")
	m := &sessionMetrics{}
	m.partialTicks, _ = meter.Int64Counter("noteinsight_partial_ticks_total",
		metric.WithDescription("Partial scheduler ticks observed"))
	m.ticksSkipped, _ = meter.Int64Counter("noteinsight_partial_ticks_skipped_total",
		metric.WithDescription("Ticks skipped because of in-flight inference or short audio"))
	m.inferences, _ = meter.Int64Counter("noteinsight_inferences_total",
		metric.WithDescription("Recognizer invocations"))
	m.eventsEmitted, _ = meter.Int64Counter("noteinsight_session_events_total",
		metric.WithDescription("Events emitted by the session"))
	return m
}
