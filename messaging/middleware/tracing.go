// Package middleware 提供消息总线中间件
package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"allocation/domain"
	"allocation/domain/commands"
	"allocation/messaging"
)

const tracerName = "allocation/messaging"

// TracingMiddleware 为每次处理器调用创建一个 span，并附带关联 ID
type TracingMiddleware struct {
	tracer trace.Tracer
}

// NewTracingMiddleware tp 为 nil 时使用全局 TracerProvider
func NewTracingMiddleware(tp trace.TracerProvider) *TracingMiddleware {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracingMiddleware{tracer: tp.Tracer(tracerName)}
}

func (m *TracingMiddleware) Name() string { return "Tracing" }

func (m *TracingMiddleware) Handle(ctx context.Context, msg domain.Message, next messaging.HandlerFunc) (any, error) {
	kind := "event"
	if _, ok := msg.(commands.Command); ok {
		kind = "command"
	}
	ctx, span := m.tracer.Start(ctx, "handle "+msg.MessageName(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("messaging.message.name", msg.MessageName()),
			attribute.String("messaging.message.kind", kind),
			attribute.String("messaging.correlation_id", messaging.CorrelationID(ctx)),
		))
	defer span.End()

	result, err := next(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}
