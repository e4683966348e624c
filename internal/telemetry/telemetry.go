// Package telemetry wraps OpenTelemetry span creation for the engine
// loop, tool executor, and hook runner so call sites stay agnostic of
// whether a real exporter is configured. Grounded on the teacher's
// internal/executor/tracing.go (one start/end span pair per named
// operation, attributes set on start, error recorded on end) and on
// goadesign-goa-ai's runtime/agents/telemetry package for the
// Tracer/Span wrapper shape that keeps engine code decoupled from the
// concrete otel SDK.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/deltaengine/delta"

// Tracer starts spans for one run's iterations, tool calls, and hooks.
// When no OpenTelemetry SDK/exporter has been registered by the
// process, go.opentelemetry.io/otel's default global provider returns
// a no-op tracer, so this type needs no separate disabled mode. Nothing
// in this module installs an SDK or reads telemetry.enabled, so every
// span below is a no-op unless the process registers a provider itself.
type Tracer struct {
	tracer trace.Tracer
}

// New returns a Tracer bound to the process-global TracerProvider.
func New() *Tracer {
	return &Tracer{tracer: otel.Tracer(instrumentationName)}
}

// StartIteration starts a span covering one Think-Act-Observe
// iteration of the engine loop.
func (t *Tracer) StartIteration(ctx context.Context, runID string, iteration int) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "engine.iteration")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Int("iteration.index", iteration),
	)
	return ctx, span
}

// EndIteration ends an iteration span, recording the stopping reason
// (if the loop stopped this iteration) and any fatal error.
func (t *Tracer) EndIteration(span trace.Span, stopReason string, err error) {
	if stopReason != "" {
		span.SetAttributes(attribute.String("iteration.stop_reason", stopReason))
	}
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// StartLLMRequest starts a span for one call to the model.
func (t *Tracer) StartLLMRequest(ctx context.Context, model string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "llm.request")
	span.SetAttributes(attribute.String("llm.model", model))
	return ctx, span
}

// EndLLMRequest ends an LLM request span.
func (t *Tracer) EndLLMRequest(span trace.Span, toolCallCount int, err error) {
	span.SetAttributes(attribute.Int("llm.tool_call_count", toolCallCount))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// StartToolExec starts a span for one tool invocation.
func (t *Tracer) StartToolExec(ctx context.Context, tool, callID string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "tool.exec")
	span.SetAttributes(
		attribute.String("tool.name", tool),
		attribute.String("tool.call_id", callID),
	)
	return ctx, span
}

// EndToolExec ends a tool-invocation span.
func (t *Tracer) EndToolExec(span trace.Span, exitCode int, err error) {
	span.SetAttributes(attribute.Int("tool.exit_code", exitCode))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// StartHook starts a span for one lifecycle hook execution.
func (t *Tracer) StartHook(ctx context.Context, point, name string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "hook."+point)
	span.SetAttributes(attribute.String("hook.name", name))
	return ctx, span
}

// EndHook ends a hook span.
func (t *Tracer) EndHook(span trace.Span, aborted bool, err error) {
	span.SetAttributes(attribute.Bool("hook.aborted", aborted))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
