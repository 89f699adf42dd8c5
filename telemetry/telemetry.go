// Package telemetry is the ambient observability seam: spec section 1
// puts telemetry emission out of scope as an external collaborator, but
// the executor still needs something to call through so a real tracing
// backend can be wired in without the core depending on one directly.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Hook is the interface the executor calls through around an
// operation and each of its plans. The returned closures are always
// safe to call exactly once, even when Hook is a no-op.
type Hook interface {
	StartOperation(ctx context.Context, operationName, operationType string) (context.Context, func(errorCount int))
	StartPlan(ctx context.Context, planID int, subgraph string) (context.Context, func(err error))
}

// NoopHook discards every call; it's the default when no tracer is
// configured, so instrumenting the executor never requires a nil check
// at call sites.
type NoopHook struct{}

func (NoopHook) StartOperation(ctx context.Context, _, _ string) (context.Context, func(int)) {
	return ctx, func(int) {}
}

func (NoopHook) StartPlan(ctx context.Context, _ int, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}

// OTelHook is the default production Hook: one span per operation and
// one nested span per plan, grounded on hanpama-protograph's
// internal/otel subscriber — collapsed here from its eventbus
// start/finish event pairs into direct start/stop closures, since the
// executor calls through a plain interface rather than publishing bus
// events.
type OTelHook struct {
	Tracer trace.Tracer
}

func NewOTelHook(tracer trace.Tracer) *OTelHook {
	return &OTelHook{Tracer: tracer}
}

func (h *OTelHook) StartOperation(ctx context.Context, operationName, operationType string) (context.Context, func(int)) {
	ctx, span := h.Tracer.Start(ctx, "graphql.operation")
	span.SetAttributes(
		attribute.String("graphql.operation.name", operationName),
		attribute.String("graphql.operation.type", operationType),
	)
	return ctx, func(errorCount int) {
		span.SetAttributes(attribute.Int("graphql.error_count", errorCount))
		span.End()
	}
}

func (h *OTelHook) StartPlan(ctx context.Context, planID int, subgraph string) (context.Context, func(error)) {
	ctx, span := h.Tracer.Start(ctx, "federation.plan")
	span.SetAttributes(
		attribute.Int("federation.plan.id", planID),
		attribute.String("federation.plan.subgraph", subgraph),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// Setup installs a global TracerProvider for the given service name
// and returns its shutdown func. A nil exporter still produces a
// working provider with every span created and discarded — useful for
// running the gateway without a collector configured.
func Setup(service string, exporter sdktrace.SpanExporter) (shutdown func(context.Context) error, err error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
