package messaging

import (
	"context"

	"github.com/google/uuid"
)

type correlationKey struct{}

// WithCorrelationID 将关联 ID 放入上下文，整个级联处理过程沿用同一 ID
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID 取出关联 ID
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// EnsureCorrelationID 上下文中没有关联 ID 时生成一个
func EnsureCorrelationID(ctx context.Context) context.Context {
	if CorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, uuid.NewString())
}
