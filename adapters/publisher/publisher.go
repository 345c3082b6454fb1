// Package publisher 将领域事件发布到外部通道
package publisher

import (
	"context"
	"fmt"

	"allocation/domain/events"
	"allocation/logging"
	"allocation/messaging"
)

// 默认通道
const (
	ChannelLineAllocated   = "line_allocated"
	ChannelLineDeallocated = "line_deallocated"
)

// IPublisher 事件发布接口
type IPublisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

// DefaultChannels 事件名到通道的默认映射
func DefaultChannels() map[string]string {
	return map[string]string{
		events.Allocated{}.MessageName():   ChannelLineAllocated,
		events.Deallocated{}.MessageName(): ChannelLineDeallocated,
	}
}

// ChannelPublisher 按事件名选择通道，通过传输层发送 JSON 信封
type ChannelPublisher struct {
	transport messaging.Transport
	channels  map[string]string
	logger    logging.Logger
}

// NewChannelPublisher channels 为 nil 时使用 DefaultChannels
func NewChannelPublisher(transport messaging.Transport, channels map[string]string) *ChannelPublisher {
	if channels == nil {
		channels = DefaultChannels()
	}
	return &ChannelPublisher{
		transport: transport,
		channels:  channels,
		logger:    logging.ComponentLogger("publisher"),
	}
}

// Publish 未映射的事件记录警告后丢弃
func (p *ChannelPublisher) Publish(ctx context.Context, evt events.Event) error {
	name := evt.MessageName()
	channel, ok := p.channels[name]
	if !ok {
		p.logger.Warn(ctx, "no channel for event, dropped", logging.String("event", name))
		return nil
	}
	msg, err := messaging.NewMessage(channel, evt)
	if err != nil {
		return err
	}
	msg.SetMetadata(messaging.MetaMessageName, name)
	if id := messaging.CorrelationID(ctx); id != "" {
		msg.SetMetadata(messaging.MetaCorrelationID, id)
	}
	if err := p.transport.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", name, channel, err)
	}
	p.logger.Debug(ctx, "event published", logging.String("event", name), logging.String("channel", channel), logging.String("message_id", msg.ID))
	return nil
}
