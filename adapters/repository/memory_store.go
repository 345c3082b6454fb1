package repository

import (
	"context"
	"sync"
	"time"

	"allocation/domain/model"
)

type batchSnapshot struct {
	ref   string
	qty   int
	eta   *time.Time
	lines []model.OrderLine
}

type productSnapshot struct {
	version  int64
	revision int64
	batches  []batchSnapshot
}

// MemoryStore 进程内的版本化快照存储。
// 互斥锁只保护快照表本身，不跨越工作单元持有。
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]productSnapshot
}

// NewMemoryStore 创建空存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[string]productSnapshot)}
}

// Session 开启一个暂存会话；写入在 Commit 前对其他会话不可见
func (s *MemoryStore) Session() *MemorySession {
	return &MemorySession{store: s}
}

// Version 返回已提交的版本号
func (s *MemoryStore) Version(sku string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.products[sku]
	return snap.version, ok
}

// Revision 返回已提交的存储修订号
func (s *MemoryStore) Revision(sku string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.products[sku]
	return snap.revision, ok
}

func (s *MemoryStore) load(sku string) (*model.Product, int64) {
	s.mu.RLock()
	snap, ok := s.products[sku]
	s.mu.RUnlock()
	if !ok {
		return nil, 0
	}
	return restore(sku, snap), snap.revision
}

func (s *MemoryStore) skuOfBatch(ref string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for sku, snap := range s.products {
		for _, b := range snap.batches {
			if b.ref == ref {
				return sku, true
			}
		}
	}
	return "", false
}

type pendingSave struct {
	sku      string
	expected int64
	isNew    bool
	snap     productSnapshot
}

// MemorySession 实现 IProductStore；Save 只暂存，Commit 时统一校验修订号后写入
type MemorySession struct {
	store   *MemoryStore
	pending []pendingSave
}

func (m *MemorySession) Load(ctx context.Context, sku string) (*model.Product, int64, error) {
	p, rev := m.store.load(sku)
	return p, rev, nil
}

func (m *MemorySession) LoadByBatchReference(ctx context.Context, ref string) (*model.Product, int64, error) {
	sku, ok := m.store.skuOfBatch(ref)
	if !ok {
		return nil, 0, nil
	}
	p, rev := m.store.load(sku)
	return p, rev, nil
}

func (m *MemorySession) Save(ctx context.Context, p *model.Product, expectedRevision int64, isNew bool) error {
	snap := snapshot(p)
	snap.revision = expectedRevision + 1
	m.pending = append(m.pending, pendingSave{
		sku:      p.SKU,
		expected: expectedRevision,
		isNew:    isNew,
		snap:     snap,
	})
	return nil
}

// Commit 原子地校验并写入全部暂存产品；任一修订号不符则全部放弃
func (m *MemorySession) Commit() error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ps := range m.pending {
		current, exists := s.products[ps.sku]
		if ps.isNew && exists {
			return ConcurrencyConflict(ps.sku, nil)
		}
		if !ps.isNew && (!exists || current.revision != ps.expected) {
			return ConcurrencyConflict(ps.sku, nil)
		}
	}
	for _, ps := range m.pending {
		s.products[ps.sku] = ps.snap
	}
	m.pending = nil
	return nil
}

// Discard 丢弃暂存写入
func (m *MemorySession) Discard() {
	m.pending = nil
}

func snapshot(p *model.Product) productSnapshot {
	snap := productSnapshot{version: p.VersionNumber()}
	for _, b := range p.Batches() {
		var eta *time.Time
		if b.ETA != nil {
			t := *b.ETA
			eta = &t
		}
		snap.batches = append(snap.batches, batchSnapshot{
			ref:   b.Reference,
			qty:   b.PurchasedQuantity(),
			eta:   eta,
			lines: b.Allocations(),
		})
	}
	return snap
}

func restore(sku string, snap productSnapshot) *model.Product {
	batches := make([]*model.Batch, 0, len(snap.batches))
	for _, bs := range snap.batches {
		var eta *time.Time
		if bs.eta != nil {
			t := *bs.eta
			eta = &t
		}
		b := model.NewBatch(bs.ref, sku, bs.qty, eta)
		for _, line := range bs.lines {
			b.RestoreAllocation(line)
		}
		batches = append(batches, b)
	}
	return model.NewProduct(sku, batches, snap.version)
}
