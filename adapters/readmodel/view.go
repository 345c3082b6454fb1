// Package readmodel 维护 allocations_view 投影：订单号 → (sku, 批次号)
package readmodel

import "context"

// Allocation 订单在读模型中的一条分配记录
type Allocation struct {
	OrderID  string `json:"-"`
	SKU      string `json:"sku"`
	BatchRef string `json:"batchref"`
}

// IWriter 投影写入端，由事件处理器在工作单元内调用
type IWriter interface {
	Add(ctx context.Context, orderID, sku, batchRef string) error
	Remove(ctx context.Context, orderID, sku string) error
}

// IReader 投影查询端
type IReader interface {
	// Allocations 按 sku、批次号排序返回订单的全部分配，无记录时返回空切片
	Allocations(ctx context.Context, orderID string) ([]Allocation, error)
}
