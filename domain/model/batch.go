package model

import (
	"slices"
	"time"
)

// Batch 一批可分配的库存。ETA 为 nil 表示已在仓库中。
type Batch struct {
	Reference string
	SKU       string
	ETA       *time.Time

	purchasedQuantity int
	allocations       map[OrderLine]struct{}
}

// NewBatch 创建批次
func NewBatch(ref, sku string, qty int, eta *time.Time) *Batch {
	return &Batch{
		Reference:         ref,
		SKU:               sku,
		ETA:               eta,
		purchasedQuantity: qty,
		allocations:       make(map[OrderLine]struct{}),
	}
}

// EqualByReference 批次以引用号判等
func EqualByReference(a, b *Batch) bool {
	return a.Reference == b.Reference
}

// CompareByETA 在库批次（ETA 为 nil）排最前，其余按 ETA 升序
func CompareByETA(a, b *Batch) int {
	switch {
	case a.ETA == nil && b.ETA == nil:
		return 0
	case a.ETA == nil:
		return -1
	case b.ETA == nil:
		return 1
	default:
		return a.ETA.Compare(*b.ETA)
	}
}

// PurchasedQuantity 采购数量
func (b *Batch) PurchasedQuantity() int {
	return b.purchasedQuantity
}

// AllocatedQuantity 已分配数量
func (b *Batch) AllocatedQuantity() int {
	total := 0
	for line := range b.allocations {
		total += line.Qty
	}
	return total
}

// AvailableQuantity 可用数量
func (b *Batch) AvailableQuantity() int {
	return b.purchasedQuantity - b.AllocatedQuantity()
}

// CanAllocate 判断批次能否容纳订单行
func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.SKU == line.SKU && b.AvailableQuantity() >= line.Qty
}

// HasAllocation 判断订单行是否已分配在本批次
func (b *Batch) HasAllocation(line OrderLine) bool {
	_, ok := b.allocations[line]
	return ok
}

// Allocations 返回按 (OrderID, SKU, Qty) 排序的分配副本
func (b *Batch) Allocations() []OrderLine {
	out := make([]OrderLine, 0, len(b.allocations))
	for line := range b.allocations {
		out = append(out, line)
	}
	slices.SortFunc(out, compareLines)
	return out
}

// allocate 仅在容量足够时加入；已存在时不重复计数
func (b *Batch) allocate(line OrderLine) bool {
	if b.HasAllocation(line) {
		return true
	}
	if !b.CanAllocate(line) {
		return false
	}
	b.allocations[line] = struct{}{}
	return true
}

func (b *Batch) deallocate(line OrderLine) bool {
	if !b.HasAllocation(line) {
		return false
	}
	delete(b.allocations, line)
	return true
}

// RestoreAllocation 由仓储重建状态时使用，不做容量检查
func (b *Batch) RestoreAllocation(line OrderLine) {
	b.allocations[line] = struct{}{}
}

// evictOne 移除排序最大的订单行，保留订单号较小的分配
func (b *Batch) evictOne() (OrderLine, bool) {
	lines := b.Allocations()
	if len(lines) == 0 {
		return OrderLine{}, false
	}
	victim := lines[len(lines)-1]
	delete(b.allocations, victim)
	return victim, true
}
