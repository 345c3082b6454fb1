// Package handlers 命令与事件处理器。处理器只在传入的工作单元内读写，由总线负责调度。
package handlers

import (
	"context"

	"allocation/domain/commands"
	"allocation/domain/model"
	"allocation/service/unitofwork"
)

// AddBatch 创建批次；产品不存在时一并创建
func AddBatch(ctx context.Context, uow unitofwork.IUnitOfWork, cmd commands.CreateBatch) (any, error) {
	product, err := uow.Products().Get(ctx, cmd.SKU)
	if err != nil {
		return nil, err
	}
	if product == nil {
		product = model.NewProduct(cmd.SKU, nil, 0)
		if err := uow.Products().Add(ctx, product); err != nil {
			return nil, err
		}
	}
	if err := product.AddBatch(model.NewBatch(cmd.Ref, cmd.SKU, cmd.Qty, cmd.ETA)); err != nil {
		return nil, err
	}
	return nil, uow.Commit(ctx)
}

// Allocate 返回分配到的批次号；缺货时返回 nil 并由产品记录 OutOfStock。
// 缺货说明该订单行不在任何批次中，读模型里残留的行（被移出后重排失败）一并删除。
func Allocate(ctx context.Context, uow unitofwork.IUnitOfWork, cmd commands.Allocate) (any, error) {
	line := model.OrderLine{OrderID: cmd.OrderID, SKU: cmd.SKU, Qty: cmd.Qty}
	product, err := uow.Products().Get(ctx, line.SKU)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, model.InvalidSku(line.SKU)
	}
	ref, ok := product.Allocate(line)
	if !ok {
		if err := uow.Allocations().Remove(ctx, line.OrderID, line.SKU); err != nil {
			return nil, err
		}
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return ref, nil
}

// Deallocate 返回订单行原先所在的批次号
func Deallocate(ctx context.Context, uow unitofwork.IUnitOfWork, cmd commands.Deallocate) (any, error) {
	line := model.OrderLine{OrderID: cmd.OrderID, SKU: cmd.SKU, Qty: cmd.Qty}
	product, err := uow.Products().Get(ctx, line.SKU)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, model.InvalidSku(line.SKU)
	}
	ref, err := product.Deallocate(line)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return ref, nil
}

// ChangeBatchQuantity 修改批次采购量，被移出的订单行以 Allocate 命令重新排队
func ChangeBatchQuantity(ctx context.Context, uow unitofwork.IUnitOfWork, cmd commands.ChangeBatchQuantity) (any, error) {
	product, err := uow.Products().GetByBatchReference(ctx, cmd.Ref)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, model.UnknownBatch(cmd.Ref)
	}
	if err := product.ChangeBatchQuantity(cmd.Ref, cmd.Qty); err != nil {
		return nil, err
	}
	return nil, uow.Commit(ctx)
}
