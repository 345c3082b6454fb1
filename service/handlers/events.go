package handlers

import (
	"context"
	"fmt"

	"allocation/adapters/notifications"
	"allocation/adapters/publisher"
	"allocation/domain/events"
	"allocation/logging"
	"allocation/service/unitofwork"
)

// DefaultStockDestination 缺货通知默认收件人
const DefaultStockDestination = "stock@made.com"

// ICacheInvalidator 读模型缓存失效接口
type ICacheInvalidator interface {
	Invalidate(ctx context.Context, orderID string)
}

// EventHandlers 事件处理器及其外部依赖；Cache 可为 nil
type EventHandlers struct {
	Notifier         notifications.INotifier
	Publisher        publisher.IPublisher
	Cache            ICacheInvalidator
	StockDestination string

	logger logging.Logger
}

func NewEventHandlers(notifier notifications.INotifier, pub publisher.IPublisher, cache ICacheInvalidator, stockDestination string) *EventHandlers {
	if stockDestination == "" {
		stockDestination = DefaultStockDestination
	}
	return &EventHandlers{
		Notifier:         notifier,
		Publisher:        pub,
		Cache:            cache,
		StockDestination: stockDestination,
		logger:           logging.ComponentLogger("handlers.events"),
	}
}

func (h *EventHandlers) SendOutOfStockNotification(ctx context.Context, _ unitofwork.IUnitOfWork, evt events.OutOfStock) error {
	return h.Notifier.Send(ctx, h.StockDestination, fmt.Sprintf("Out of stock for %s", evt.SKU))
}

func (h *EventHandlers) PublishAllocatedEvent(ctx context.Context, _ unitofwork.IUnitOfWork, evt events.Allocated) error {
	return h.Publisher.Publish(ctx, evt)
}

func (h *EventHandlers) PublishDeallocatedEvent(ctx context.Context, _ unitofwork.IUnitOfWork, evt events.Deallocated) error {
	return h.Publisher.Publish(ctx, evt)
}

// AddAllocationToReadModel 写入 allocations_view 并提交
func (h *EventHandlers) AddAllocationToReadModel(ctx context.Context, uow unitofwork.IUnitOfWork, evt events.Allocated) error {
	if err := uow.Allocations().Add(ctx, evt.OrderID, evt.SKU, evt.BatchRef); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// RemoveAllocationFromReadModel 删除 allocations_view 记录并提交
func (h *EventHandlers) RemoveAllocationFromReadModel(ctx context.Context, uow unitofwork.IUnitOfWork, evt events.Deallocated) error {
	if err := uow.Allocations().Remove(ctx, evt.OrderID, evt.SKU); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// InvalidateAllocationsCache 对 Allocated 与 Deallocated 均适用
func (h *EventHandlers) InvalidateAllocationsCache(ctx context.Context, _ unitofwork.IUnitOfWork, orderID string) error {
	if h.Cache == nil {
		return nil
	}
	h.Cache.Invalidate(ctx, orderID)
	h.logger.Debug(ctx, "allocations cache invalidated", logging.String("orderid", orderID))
	return nil
}
