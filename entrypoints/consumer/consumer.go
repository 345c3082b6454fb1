// Package consumer 订阅外部入站通道，把消息转换为命令交给总线
package consumer

import (
	"context"
	"fmt"

	"allocation/domain"
	"allocation/domain/commands"
	"allocation/logging"
	"allocation/messaging"
)

// 入站通道
const (
	ChannelChangeBatchQuantity = "change_batch_quantity"
	ChannelAllocate            = "allocate"
)

// ICommandBus 总线的最小依赖面
type ICommandBus interface {
	Handle(ctx context.Context, msg domain.Message) ([]any, error)
}

type changeBatchQuantityPayload struct {
	BatchRef string `json:"batchref"`
	Qty      int    `json:"qty"`
}

type allocatePayload struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

// Consumer 入站消息处理
type Consumer struct {
	bus    ICommandBus
	logger logging.Logger
}

// New 创建消费者
func New(bus ICommandBus) *Consumer {
	return &Consumer{bus: bus, logger: logging.ComponentLogger("consumer")}
}

// Subscribe 在传输上注册全部入站通道，须在 Start 之前调用
func (c *Consumer) Subscribe(t messaging.Transport) error {
	subs := map[string]messaging.MessageHandlerFunc{
		ChannelChangeBatchQuantity: c.handleChangeBatchQuantity,
		ChannelAllocate:            c.handleAllocate,
	}
	for channel, h := range subs {
		if err := t.Subscribe(channel, h); err != nil {
			return fmt.Errorf("subscribe %s: %w", channel, err)
		}
	}
	return nil
}

func (c *Consumer) handleChangeBatchQuantity(ctx context.Context, msg *messaging.Message) error {
	var p changeBatchQuantityPayload
	if err := msg.Decode(&p); err != nil {
		return c.reject(ctx, msg, err)
	}
	return c.dispatch(ctx, msg, commands.ChangeBatchQuantity{Ref: p.BatchRef, Qty: p.Qty})
}

func (c *Consumer) handleAllocate(ctx context.Context, msg *messaging.Message) error {
	var p allocatePayload
	if err := msg.Decode(&p); err != nil {
		return c.reject(ctx, msg, err)
	}
	return c.dispatch(ctx, msg, commands.Allocate{OrderID: p.OrderID, SKU: p.SKU, Qty: p.Qty})
}

func (c *Consumer) dispatch(ctx context.Context, msg *messaging.Message, cmd commands.Command) error {
	ctx = messaging.ContextFor(ctx, msg)
	c.logger.Debug(ctx, "handling inbound message",
		logging.String("channel", msg.Type),
		logging.String("message_id", msg.ID),
		logging.String("command", cmd.MessageName()))
	if _, err := c.bus.Handle(ctx, cmd); err != nil {
		c.logger.Warn(ctx, "inbound command failed",
			logging.String("channel", msg.Type),
			logging.String("message_id", msg.ID),
			logging.Error(err))
		return fmt.Errorf("%s from %s: %w", cmd.MessageName(), msg.Type, err)
	}
	return nil
}

func (c *Consumer) reject(ctx context.Context, msg *messaging.Message, err error) error {
	c.logger.Warn(ctx, "malformed inbound message",
		logging.String("channel", msg.Type),
		logging.String("message_id", msg.ID),
		logging.Error(err))
	return fmt.Errorf("decode %s message %s: %w", msg.Type, msg.ID, err)
}
