package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allocation/domain/model"
)

func TestTracker_IdentityMapAndOrder(t *testing.T) {
	tr := NewTracker()
	a := model.NewProduct("A", nil, 0)
	b := model.NewProduct("B", nil, 3)

	assert.Same(t, a, tr.Track(a, 0, true))
	tr.Track(b, 5, false)
	assert.Same(t, a, tr.Track(model.NewProduct("A", nil, 7), 9, false))

	require.Equal(t, 2, tr.Len())
	entries := tr.Entries()
	assert.Equal(t, "A", entries[0].Product.SKU)
	assert.True(t, entries[0].IsNew)
	assert.Equal(t, int64(5), entries[1].LoadedRevision)
	assert.Equal(t, []*model.Product{a, b}, tr.Products())

	tr.MarkPersisted()
	entries = tr.Entries()
	assert.False(t, entries[0].IsNew)
	assert.Equal(t, int64(1), entries[0].LoadedRevision)
	assert.Equal(t, int64(6), entries[1].LoadedRevision)
}

func TestTracker_LookupByBatch(t *testing.T) {
	tr := NewTracker()
	p := model.NewProduct("LAMP", []*model.Batch{model.NewBatch("b1", "LAMP", 1, nil)}, 0)
	tr.Track(p, 1, false)

	got, ok := tr.LookupByBatch("b1")
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = tr.LookupByBatch("b2")
	assert.False(t, ok)
}

func TestTrackingRepository_GetTracksLoadedProducts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed := store.Session()
	require.NoError(t, seed.Save(ctx, model.NewProduct("LAMP", []*model.Batch{model.NewBatch("b1", "LAMP", 10, nil)}, 0), 0, true))
	require.NoError(t, seed.Commit())

	tr := NewTracker()
	repo := NewTrackingRepository(store.Session(), tr)

	first, err := repo.Get(ctx, "LAMP")
	require.NoError(t, err)
	require.NotNil(t, first)
	again, err := repo.GetByBatchReference(ctx, "b1")
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.Equal(t, 1, tr.Len())

	missing, err := repo.Get(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Equal(t, 1, tr.Len())
}

func TestTrackingRepository_AddRejectsTrackedSku(t *testing.T) {
	repo := NewTrackingRepository(NewMemoryStore().Session(), NewTracker())
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, model.NewProduct("LAMP", nil, 0)))
	assert.ErrorIs(t, repo.Add(ctx, model.NewProduct("LAMP", nil, 0)), ErrProductExists)
}

func TestMemorySession_CommitChecksVersions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed := store.Session()
	require.NoError(t, seed.Save(ctx, model.NewProduct("LAMP", []*model.Batch{model.NewBatch("b1", "LAMP", 10, nil)}, 0), 0, true))
	require.NoError(t, seed.Commit())

	s1, s2 := store.Session(), store.Session()
	p1, rev1, _ := s1.Load(ctx, "LAMP")
	p2, rev2, _ := s2.Load(ctx, "LAMP")
	assert.NotSame(t, p1, p2)
	assert.Equal(t, int64(1), rev1)

	p1.Allocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 1})
	p2.Allocate(model.OrderLine{OrderID: "o2", SKU: "LAMP", Qty: 1})
	require.NoError(t, s1.Save(ctx, p1, rev1, false))
	require.NoError(t, s2.Save(ctx, p2, rev2, false))

	require.NoError(t, s1.Commit())
	assert.ErrorIs(t, s2.Commit(), ErrConcurrencyConflict)

	v, ok := store.Version("LAMP")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)
	rev, _ := store.Revision("LAMP")
	assert.Equal(t, int64(2), rev)
	stored, _, _ := store.Session().Load(ctx, "LAMP")
	b, _ := stored.Batch("b1")
	assert.Equal(t, []model.OrderLine{{OrderID: "o1", SKU: "LAMP", Qty: 1}}, b.Allocations())
}

func TestMemorySession_RevisionCatchesVersionNeutralWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seed := store.Session()
	require.NoError(t, seed.Save(ctx, model.NewProduct("LAMP", []*model.Batch{model.NewBatch("b1", "LAMP", 10, nil)}, 0), 0, true))
	require.NoError(t, seed.Commit())

	stale := store.Session()
	p, rev, _ := stale.Load(ctx, "LAMP")

	// 新增批次不改变领域版本号
	other := store.Session()
	q, qrev, _ := other.Load(ctx, "LAMP")
	require.NoError(t, q.AddBatch(model.NewBatch("b2", "LAMP", 5, nil)))
	require.NoError(t, other.Save(ctx, q, qrev, false))
	require.NoError(t, other.Commit())

	// 分配后再取消，领域版本号回到原值
	p.Allocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 1})
	_, err := p.Deallocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 1})
	require.NoError(t, err)
	v, _ := store.Version("LAMP")
	require.Equal(t, v, p.VersionNumber())

	require.NoError(t, stale.Save(ctx, p, rev, false))
	assert.ErrorIs(t, stale.Commit(), ErrConcurrencyConflict)

	stored, _, _ := store.Session().Load(ctx, "LAMP")
	_, ok := stored.Batch("b2")
	assert.True(t, ok)
}

func TestMemorySession_DuplicateCreateConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s1, s2 := store.Session(), store.Session()
	require.NoError(t, s1.Save(ctx, model.NewProduct("LAMP", nil, 0), 0, true))
	require.NoError(t, s2.Save(ctx, model.NewProduct("LAMP", nil, 0), 0, true))

	require.NoError(t, s1.Commit())
	assert.ErrorIs(t, s2.Commit(), ErrConcurrencyConflict)
}

func TestMemoryStore_LoadReturnsDeepCopy(t *testing.T) {
	ctx := context.Background()
	eta := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	seed := store.Session()
	require.NoError(t, seed.Save(ctx, model.NewProduct("LAMP", []*model.Batch{model.NewBatch("b1", "LAMP", 10, &eta)}, 0), 0, true))
	require.NoError(t, seed.Commit())

	p, _, _ := store.Session().Load(ctx, "LAMP")
	b, _ := p.Batch("b1")
	*b.ETA = b.ETA.AddDate(1, 0, 0)
	p.Allocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 5})

	fresh, _, _ := store.Session().Load(ctx, "LAMP")
	fb, _ := fresh.Batch("b1")
	assert.Equal(t, eta, *fb.ETA)
	assert.Equal(t, 10, fb.AvailableQuantity())
}
