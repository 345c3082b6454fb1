// Package observability 初始化 OpenTelemetry 链路追踪
package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"allocation/logging"
)

// TracingOptions 追踪选项
type TracingOptions struct {
	ServiceName string
	Enabled     bool
	// Writer 非空时使用 stdout 导出器写入该 Writer
	Writer io.Writer
}

// InitTracing 设置全局 TracerProvider 与传播器，返回关闭函数。
// 未启用时返回空操作，全局仍为 otel 默认的 noop provider。
func InitTracing(ctx context.Context, opts TracingOptions) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	logger := logging.ComponentLogger("observability")
	if !opts.Enabled {
		return nil, func(context.Context) error { return nil }, nil
	}
	name := opts.ServiceName
	if name == "" {
		name = "allocation"
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}
	if opts.Writer != nil {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logger.Info(ctx, "tracing initialized", logging.String("service", name), logging.Bool("stdout", opts.Writer != nil))
	return tp, tp.Shutdown, nil
}
