package readmodel

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryView 进程内投影
type MemoryView struct {
	mu   sync.RWMutex
	rows map[string][]Allocation
}

// NewMemoryView 创建空投影
func NewMemoryView() *MemoryView {
	return &MemoryView{rows: make(map[string][]Allocation)}
}

func (v *MemoryView) Allocations(ctx context.Context, orderID string) ([]Allocation, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := append([]Allocation{}, v.rows[orderID]...)
	slices.SortFunc(out, func(a, b Allocation) int {
		if c := strings.Compare(a.SKU, b.SKU); c != 0 {
			return c
		}
		return strings.Compare(a.BatchRef, b.BatchRef)
	})
	return out, nil
}

func (v *MemoryView) add(orderID, sku, batchRef string) {
	for i, a := range v.rows[orderID] {
		if a.SKU == sku {
			v.rows[orderID][i].BatchRef = batchRef
			return
		}
	}
	v.rows[orderID] = append(v.rows[orderID], Allocation{OrderID: orderID, SKU: sku, BatchRef: batchRef})
}

func (v *MemoryView) remove(orderID, sku string) {
	kept := v.rows[orderID][:0]
	for _, a := range v.rows[orderID] {
		if a.SKU != sku {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		delete(v.rows, orderID)
		return
	}
	v.rows[orderID] = kept
}

// Session 开启暂存写入会话，Commit 时生效
func (v *MemoryView) Session() *MemoryWriter {
	return &MemoryWriter{view: v}
}

type viewOp struct {
	remove   bool
	orderID  string
	sku      string
	batchRef string
}

// MemoryWriter 暂存写入，实现 IWriter
type MemoryWriter struct {
	view *MemoryView
	ops  []viewOp
}

func (w *MemoryWriter) Add(ctx context.Context, orderID, sku, batchRef string) error {
	w.ops = append(w.ops, viewOp{orderID: orderID, sku: sku, batchRef: batchRef})
	return nil
}

func (w *MemoryWriter) Remove(ctx context.Context, orderID, sku string) error {
	w.ops = append(w.ops, viewOp{remove: true, orderID: orderID, sku: sku})
	return nil
}

// Commit 按顺序应用暂存写入
func (w *MemoryWriter) Commit() {
	w.view.mu.Lock()
	defer w.view.mu.Unlock()
	for _, op := range w.ops {
		if op.remove {
			w.view.remove(op.orderID, op.sku)
		} else {
			w.view.add(op.orderID, op.sku, op.batchRef)
		}
	}
	w.ops = nil
}

// Discard 丢弃暂存写入
func (w *MemoryWriter) Discard() {
	w.ops = nil
}
