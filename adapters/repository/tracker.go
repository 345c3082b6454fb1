package repository

import "allocation/domain/model"

// Entry 已见产品及其加载时的存储修订号
type Entry struct {
	Product        *model.Product
	LoadedRevision int64
	IsNew          bool
}

// Tracker 事务范围内的已见产品登记表，同时充当身份映射：
// 同一事务内对同一 SKU 的多次读取返回同一实例。
type Tracker struct {
	order   []string
	entries map[string]*Entry
}

// NewTracker 创建空登记表
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*Entry)}
}

// Track 登记产品；已登记过的 SKU 返回先前的实例。新产品的 revision 为 0
func (t *Tracker) Track(p *model.Product, revision int64, isNew bool) *model.Product {
	if e, ok := t.entries[p.SKU]; ok {
		return e.Product
	}
	t.entries[p.SKU] = &Entry{Product: p, LoadedRevision: revision, IsNew: isNew}
	t.order = append(t.order, p.SKU)
	return p
}

// Lookup 按 SKU 查找已见产品
func (t *Tracker) Lookup(sku string) (*model.Product, bool) {
	e, ok := t.entries[sku]
	if !ok {
		return nil, false
	}
	return e.Product, true
}

// LookupByBatch 在已见产品中查找持有该批次的产品
func (t *Tracker) LookupByBatch(ref string) (*model.Product, bool) {
	for _, sku := range t.order {
		p := t.entries[sku].Product
		if _, ok := p.Batch(ref); ok {
			return p, true
		}
	}
	return nil, false
}

// Products 按首次登记顺序返回已见产品
func (t *Tracker) Products() []*model.Product {
	out := make([]*model.Product, 0, len(t.order))
	for _, sku := range t.order {
		out = append(out, t.entries[sku].Product)
	}
	return out
}

// Entries 按首次登记顺序返回登记项副本
func (t *Tracker) Entries() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, sku := range t.order {
		out = append(out, *t.entries[sku])
	}
	return out
}

// Len 已见产品数量
func (t *Tracker) Len() int {
	return len(t.order)
}

// MarkPersisted 提交成功后推进修订号；Flush 保存了每个登记项，各自恰好加一
func (t *Tracker) MarkPersisted() {
	for _, e := range t.entries {
		e.LoadedRevision++
		e.IsNew = false
	}
}
