// Package repository 提供产品聚合的仓储：事务内的已见登记表与各存储实现
package repository

import (
	"context"

	"allocation/domain/model"
)

// IProductRepository 产品仓储；取回或新增的产品都会登记到所属工作单元的 Tracker
type IProductRepository interface {
	Add(ctx context.Context, p *model.Product) error

	// Get 不存在时返回 nil, nil
	Get(ctx context.Context, sku string) (*model.Product, error)

	// GetByBatchReference 按批次号查找所属产品，不存在时返回 nil, nil
	GetByBatchReference(ctx context.Context, ref string) (*model.Product, error)
}

// IProductStore 事务范围内的持久化存储
type IProductStore interface {
	// Load 返回产品及其存储修订号，不存在时返回 nil, 0, nil
	Load(ctx context.Context, sku string) (*model.Product, int64, error)
	LoadByBatchReference(ctx context.Context, ref string) (*model.Product, int64, error)

	// Save 以 expectedRevision 做比较并交换，成功后修订号加一；
	// 被其他事务改动时返回 ErrConcurrencyConflict。
	// 修订号每次保存都递增，与领域版本号无关。
	Save(ctx context.Context, p *model.Product, expectedRevision int64, isNew bool) error
}

// TrackingRepository 将存储读取的产品登记到 Tracker，并在提交时统一刷写
type TrackingRepository struct {
	store   IProductStore
	tracker *Tracker
}

// NewTrackingRepository 创建仓储
func NewTrackingRepository(store IProductStore, tracker *Tracker) *TrackingRepository {
	return &TrackingRepository{store: store, tracker: tracker}
}

func (r *TrackingRepository) Add(ctx context.Context, p *model.Product) error {
	if _, ok := r.tracker.Lookup(p.SKU); ok {
		return &RepositoryError{Code: ErrProductExists.Code, Message: ErrProductExists.Message, EntityID: p.SKU}
	}
	r.tracker.Track(p, 0, true)
	return nil
}

func (r *TrackingRepository) Get(ctx context.Context, sku string) (*model.Product, error) {
	if p, ok := r.tracker.Lookup(sku); ok {
		return p, nil
	}
	p, rev, err := r.store.Load(ctx, sku)
	if err != nil || p == nil {
		return nil, err
	}
	return r.tracker.Track(p, rev, false), nil
}

func (r *TrackingRepository) GetByBatchReference(ctx context.Context, ref string) (*model.Product, error) {
	if p, ok := r.tracker.LookupByBatch(ref); ok {
		return p, nil
	}
	p, rev, err := r.store.LoadByBatchReference(ctx, ref)
	if err != nil || p == nil {
		return nil, err
	}
	return r.tracker.Track(p, rev, false), nil
}

// Flush 按首次登记顺序保存全部已见产品
func (r *TrackingRepository) Flush(ctx context.Context) error {
	for _, e := range r.tracker.Entries() {
		if err := r.store.Save(ctx, e.Product, e.LoadedRevision, e.IsNew); err != nil {
			return err
		}
	}
	return nil
}
