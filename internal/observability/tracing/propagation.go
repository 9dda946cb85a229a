package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// SetPropagator installs W3C tracecontext and baggage as the global
// propagator.
func SetPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// ExtractContext continues the trace carried by carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// CarrierFromContext serializes the active trace for storage next to a
// record, such as an outbox event. It is empty when ctx has no span.
func CarrierFromContext(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

// ContextFromCarrier restores a trace stored with CarrierFromContext.
func ContextFromCarrier(ctx context.Context, stored map[string]string) context.Context {
	if len(stored) == 0 {
		return ctx
	}
	return ExtractContext(ctx, propagation.MapCarrier(stored))
}
