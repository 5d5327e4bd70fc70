// Package tracing wraps handler invocations in OpenTelemetry spans and propagates the
// active span context into relay headers.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	cbus "github.com/next-trace/scg-message-bus/contract/bus"
)

// InstrumentationName is the tracer name used when Middleware is given a nil tracer.
const InstrumentationName = "github.com/next-trace/scg-message-bus"

// Span attribute keys.
const (
	AttrKind    = attribute.Key("scgbus.message.kind")
	AttrMessage = attribute.Key("scgbus.message.type")
	AttrHandler = attribute.Key("scgbus.handler")
	AttrAttempt = attribute.Key("scgbus.attempt")
)

// Middleware opens one span per handler invocation. Event spans are consumers, command
// spans are internal; a failing attempt records the error and sets the span status.
func Middleware(tracer trace.Tracer) cbus.Middleware {
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}

	return func(next cbus.Handler) cbus.Handler {
		return func(ctx context.Context, msg cbus.Message, uow cbus.UnitOfWork) (any, error) {
			inv, _ := cbus.InvocationFrom(ctx)
			kind := cbus.KindOf(msg)

			spanKind := trace.SpanKindInternal
			if kind == cbus.KindEvent {
				spanKind = trace.SpanKindConsumer
			}

			ctx, span := tracer.Start(ctx, kind.String()+" "+inv.MessageType,
				trace.WithSpanKind(spanKind),
				trace.WithAttributes(
					AttrKind.String(kind.String()),
					AttrMessage.String(inv.MessageType),
					AttrHandler.String(inv.Handler),
					AttrAttempt.Int(inv.Attempt),
				),
			)
			defer span.End()

			res, err := next(ctx, msg, uow)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}

			return res, err
		}
	}
}

// Propagator injects the span context of ctx into relay headers.
type Propagator struct {
	// TextMap defaults to the global otel propagator.
	TextMap propagation.TextMapPropagator
}

var _ cbus.HeaderPropagator = Propagator{}

func (p Propagator) Inject(ctx context.Context, headers map[string]string) {
	tm := p.TextMap
	if tm == nil {
		tm = otel.GetTextMapPropagator()
	}

	tm.Inject(ctx, propagation.MapCarrier(headers))
}

// Extract returns ctx carrying the remote span context found in headers, for consumers of
// relayed events.
func (p Propagator) Extract(ctx context.Context, headers map[string]string) context.Context {
	tm := p.TextMap
	if tm == nil {
		tm = otel.GetTextMapPropagator()
	}

	return tm.Extract(ctx, propagation.MapCarrier(headers))
}
