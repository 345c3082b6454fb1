// Package bootstrap 组装处理器注册表与消息总线，并按配置装配完整应用
package bootstrap

import (
	"context"
	"fmt"

	"allocation/adapters/notifications"
	"allocation/adapters/publisher"
	"allocation/domain/commands"
	"allocation/domain/events"
	"allocation/messaging"
	"allocation/patterns/retry"
	"allocation/service/handlers"
	"allocation/service/unitofwork"
)

// Dependencies 构建总线所需的依赖；Cache 可为 nil
type Dependencies struct {
	UoW              unitofwork.IUnitOfWorkFactory
	Notifier         notifications.INotifier
	Publisher        publisher.IPublisher
	Cache            handlers.ICacheInvalidator
	StockDestination string
	Retry            *retry.Config
	Middlewares      []messaging.IMiddleware
}

// NewRegistry 注册全部命令处理器，以及每种事件按固定顺序执行的处理器
func NewRegistry(eh *handlers.EventHandlers) (*messaging.Registry, error) {
	reg := messaging.NewRegistry()

	cmds := []struct {
		cmd commands.Command
		h   messaging.CommandHandler
	}{
		{commands.CreateBatch{}, messaging.CommandHandlerOf(handlers.AddBatch)},
		{commands.Allocate{}, messaging.CommandHandlerOf(
			func(ctx context.Context, uow unitofwork.IUnitOfWork, cmd commands.Allocate) (any, error) {
				ref, err := handlers.Allocate(ctx, uow, cmd)
				if err == nil && ref == nil {
					// 缺货时 Allocate 删除了读模型行，没有事件会让缓存失效
					_ = eh.InvalidateAllocationsCache(ctx, uow, cmd.OrderID)
				}
				return ref, err
			})},
		{commands.Deallocate{}, messaging.CommandHandlerOf(handlers.Deallocate)},
		{commands.ChangeBatchQuantity{}, messaging.CommandHandlerOf(handlers.ChangeBatchQuantity)},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.cmd, c.h); err != nil {
			return nil, err
		}
	}

	reg.RegisterEvent(events.Allocated{}, "publish_allocated_event", messaging.EventHandlerOf(eh.PublishAllocatedEvent))
	reg.RegisterEvent(events.Allocated{}, "add_allocation_to_read_model", messaging.EventHandlerOf(eh.AddAllocationToReadModel))
	reg.RegisterEvent(events.Allocated{}, "invalidate_allocations_cache", messaging.EventHandlerOf(
		func(ctx context.Context, uow unitofwork.IUnitOfWork, evt events.Allocated) error {
			return eh.InvalidateAllocationsCache(ctx, uow, evt.OrderID)
		}))

	reg.RegisterEvent(events.Deallocated{}, "remove_allocation_from_read_model", messaging.EventHandlerOf(eh.RemoveAllocationFromReadModel))
	reg.RegisterEvent(events.Deallocated{}, "publish_deallocated_event", messaging.EventHandlerOf(eh.PublishDeallocatedEvent))
	reg.RegisterEvent(events.Deallocated{}, "invalidate_allocations_cache", messaging.EventHandlerOf(
		func(ctx context.Context, uow unitofwork.IUnitOfWork, evt events.Deallocated) error {
			return eh.InvalidateAllocationsCache(ctx, uow, evt.OrderID)
		}))

	reg.RegisterEvent(events.OutOfStock{}, "send_out_of_stock_notification", messaging.EventHandlerOf(eh.SendOutOfStockNotification))
	return reg, nil
}

// NewBus 构建消息总线
func NewBus(deps Dependencies) (*messaging.MessageBus, error) {
	if deps.UoW == nil {
		return nil, fmt.Errorf("bootstrap: unit of work factory required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewLogNotifier()
	}
	if deps.Publisher == nil {
		return nil, fmt.Errorf("bootstrap: publisher required")
	}
	eh := handlers.NewEventHandlers(deps.Notifier, deps.Publisher, deps.Cache, deps.StockDestination)
	reg, err := NewRegistry(eh)
	if err != nil {
		return nil, err
	}
	opts := []messaging.Option{messaging.WithMiddleware(deps.Middlewares...)}
	if deps.Retry != nil {
		opts = append(opts, messaging.WithRetry(*deps.Retry))
	}
	return messaging.NewMessageBus(reg, deps.UoW, opts...), nil
}
