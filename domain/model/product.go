package model

import (
	"slices"

	"allocation/domain/commands"
	"allocation/domain/entity"
	"allocation/domain/events"
)

// Product 聚合根，独占其全部批次；版本号是乐观锁令牌
type Product struct {
	entity.Aggregate

	SKU     string
	batches []*Batch
}

// NewProduct 创建产品；从存储加载时传入已保存的版本号
func NewProduct(sku string, batches []*Batch, version int64) *Product {
	p := &Product{SKU: sku, batches: append([]*Batch(nil), batches...)}
	p.SetVersion(version)
	return p
}

// AggregateID 以 SKU 作为聚合标识
func (p *Product) AggregateID() string {
	return p.SKU
}

// VersionNumber 当前版本号
func (p *Product) VersionNumber() int64 {
	return p.GetVersion()
}

// Batches 按加入顺序返回批次
func (p *Product) Batches() []*Batch {
	return append([]*Batch(nil), p.batches...)
}

// Batch 按引用号查找批次
func (p *Product) Batch(ref string) (*Batch, bool) {
	for _, b := range p.batches {
		if b.Reference == ref {
			return b, true
		}
	}
	return nil, false
}

// AddBatch 加入新批次
func (p *Product) AddBatch(b *Batch) error {
	if b.SKU != p.SKU {
		return InvalidSku(b.SKU)
	}
	for _, existing := range p.batches {
		if EqualByReference(existing, b) {
			return DuplicateBatch(b.Reference)
		}
	}
	p.batches = append(p.batches, b)
	return nil
}

// Allocate 把订单行分配到最优批次并返回批次号。
//
// 在库批次优先，其次 ETA 早者。已分配过的订单行直接返回原批次号，
// 不重复计数、不改版本、不重复发事件。无可用批次时记录 OutOfStock 并返回 false。
func (p *Product) Allocate(line OrderLine) (string, bool) {
	for _, b := range p.batches {
		if b.HasAllocation(line) {
			return b.Reference, true
		}
	}

	sorted := p.Batches()
	slices.SortStableFunc(sorted, CompareByETA)

	for _, b := range sorted {
		if !b.CanAllocate(line) {
			continue
		}
		b.allocate(line)
		p.IncrementVersion()
		p.Record(events.Allocated{
			OrderID:  line.OrderID,
			SKU:      line.SKU,
			Qty:      line.Qty,
			BatchRef: b.Reference,
		})
		return b.Reference, true
	}

	p.Record(events.OutOfStock{SKU: line.SKU})
	return "", false
}

// Deallocate 撤销订单行的分配并返回其原批次号
func (p *Product) Deallocate(line OrderLine) (string, error) {
	for _, b := range p.batches {
		if !b.deallocate(line) {
			continue
		}
		p.DecrementVersion()
		p.Record(events.Deallocated{OrderID: line.OrderID, SKU: line.SKU, Qty: line.Qty})
		return b.Reference, nil
	}
	return "", NoAllocationFound(line.OrderID)
}

// ChangeBatchQuantity 修改采购数量；可用量为负时逐条移出订单行，
// 并为每条移出的订单行记录一个新的 Allocate 命令。
func (p *Product) ChangeBatchQuantity(ref string, qty int) error {
	b, ok := p.Batch(ref)
	if !ok {
		return UnknownBatch(ref)
	}
	b.purchasedQuantity = qty
	for b.AvailableQuantity() < 0 {
		line, ok := b.evictOne()
		if !ok {
			break
		}
		p.Record(commands.Allocate{OrderID: line.OrderID, SKU: line.SKU, Qty: line.Qty})
	}
	return nil
}
