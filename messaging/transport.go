package messaging

import "context"

// IMessageHandler 外部通道消息处理器
type IMessageHandler interface {
	Handle(ctx context.Context, message *Message) error
}

// MessageHandlerFunc 函数适配器
type MessageHandlerFunc func(ctx context.Context, message *Message) error

func (f MessageHandlerFunc) Handle(ctx context.Context, message *Message) error {
	return f(ctx, message)
}

// Transport 外部通道传输接口
type Transport interface {
	Publish(ctx context.Context, message *Message) error
	Subscribe(channel string, handler IMessageHandler) error
	Start(ctx context.Context) error
	Close() error
	Stats() TransportStats
}

// TransportStats 传输层统计信息
type TransportStats struct {
	Running      bool     `json:"running"`
	HandlerCount int      `json:"handler_count"`
	Channels     []string `json:"channels"`
}
