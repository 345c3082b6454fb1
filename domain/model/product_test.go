package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allocation/domain"
	"allocation/domain/commands"
	"allocation/domain/events"
	"allocation/domain/model"
)

var (
	today    = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tomorrow = today.AddDate(0, 0, 1)
	later    = today.AddDate(0, 0, 10)
)

func newProduct(t *testing.T, sku string, batches ...*model.Batch) *model.Product {
	t.Helper()
	p := model.NewProduct(sku, nil, 0)
	for _, b := range batches {
		require.NoError(t, p.AddBatch(b))
	}
	return p
}

func TestProduct_PrefersWarehouseBatchesToShipments(t *testing.T) {
	inStock := model.NewBatch("in-stock", "RETRO-CLOCK", 100, nil)
	shipment := model.NewBatch("shipment", "RETRO-CLOCK", 100, &tomorrow)
	p := newProduct(t, "RETRO-CLOCK", shipment, inStock)

	ref, ok := p.Allocate(model.OrderLine{OrderID: "oref", SKU: "RETRO-CLOCK", Qty: 10})

	require.True(t, ok)
	assert.Equal(t, "in-stock", ref)
	assert.Equal(t, 90, inStock.AvailableQuantity())
	assert.Equal(t, 100, shipment.AvailableQuantity())
}

func TestProduct_PrefersEarlierBatches(t *testing.T) {
	earliest := model.NewBatch("speedy", "MINIMALIST-SPOON", 100, &today)
	medium := model.NewBatch("normal", "MINIMALIST-SPOON", 100, &tomorrow)
	latest := model.NewBatch("slow", "MINIMALIST-SPOON", 100, &later)
	p := newProduct(t, "MINIMALIST-SPOON", medium, earliest, latest)

	ref, ok := p.Allocate(model.OrderLine{OrderID: "order1", SKU: "MINIMALIST-SPOON", Qty: 10})

	require.True(t, ok)
	assert.Equal(t, "speedy", ref)
	assert.Equal(t, 90, earliest.AvailableQuantity())
	assert.Equal(t, 100, medium.AvailableQuantity())
	assert.Equal(t, 100, latest.AvailableQuantity())
}

func TestProduct_SkipsBatchesWithoutCapacity(t *testing.T) {
	small := model.NewBatch("small", "LAMP", 2, nil)
	big := model.NewBatch("big", "LAMP", 20, &tomorrow)
	p := newProduct(t, "LAMP", small, big)

	ref, ok := p.Allocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 5})

	require.True(t, ok)
	assert.Equal(t, "big", ref)
}

func TestProduct_AllocateRecordsEventAndBumpsVersion(t *testing.T) {
	p := newProduct(t, "LAMP", model.NewBatch("b1", "LAMP", 10, nil))

	_, ok := p.Allocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 3})

	require.True(t, ok)
	assert.Equal(t, int64(1), p.VersionNumber())
	assert.Equal(t, []domain.Message{
		events.Allocated{OrderID: "o1", SKU: "LAMP", Qty: 3, BatchRef: "b1"},
	}, p.PullMessages())
}

func TestProduct_AllocateIsIdempotent(t *testing.T) {
	b := model.NewBatch("b1", "LAMP", 10, nil)
	p := newProduct(t, "LAMP", b)
	line := model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 3}

	first, ok := p.Allocate(line)
	require.True(t, ok)
	p.PullMessages()

	second, ok := p.Allocate(line)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, 7, b.AvailableQuantity())
	assert.Equal(t, int64(1), p.VersionNumber())
	assert.Empty(t, p.PullMessages())
}

func TestProduct_OutOfStockIsAnEventNotAnError(t *testing.T) {
	b := model.NewBatch("b1", "SMALL-FORK", 10, &today)
	p := newProduct(t, "SMALL-FORK", b)

	_, ok := p.Allocate(model.OrderLine{OrderID: "o1", SKU: "SMALL-FORK", Qty: 10})
	require.True(t, ok)
	p.PullMessages()

	ref, ok := p.Allocate(model.OrderLine{OrderID: "o2", SKU: "SMALL-FORK", Qty: 1})

	assert.False(t, ok)
	assert.Empty(t, ref)
	assert.Equal(t, int64(1), p.VersionNumber())
	assert.Equal(t, []domain.Message{events.OutOfStock{SKU: "SMALL-FORK"}}, p.PullMessages())
}

func TestProduct_AllocateThenDeallocateRestoresState(t *testing.T) {
	b := model.NewBatch("b1", "LAMP", 10, nil)
	p := newProduct(t, "LAMP", b)
	line := model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 4}

	_, ok := p.Allocate(line)
	require.True(t, ok)

	ref, err := p.Deallocate(line)
	require.NoError(t, err)

	assert.Equal(t, "b1", ref)
	assert.Equal(t, 10, b.AvailableQuantity())
	assert.Equal(t, int64(0), p.VersionNumber())
	assert.Equal(t, []domain.Message{
		events.Allocated{OrderID: "o1", SKU: "LAMP", Qty: 4, BatchRef: "b1"},
		events.Deallocated{OrderID: "o1", SKU: "LAMP", Qty: 4},
	}, p.PullMessages())
}

func TestProduct_DeallocateUnknownLine(t *testing.T) {
	p := newProduct(t, "LAMP", model.NewBatch("b1", "LAMP", 10, nil))

	_, err := p.Deallocate(model.OrderLine{OrderID: "nope", SKU: "LAMP", Qty: 1})

	require.ErrorIs(t, err, model.ErrNoAllocationFound)
	assert.Contains(t, err.Error(), "nope")
	assert.Empty(t, p.PullMessages())
}

func TestProduct_DeallocateRequiresEqualLine(t *testing.T) {
	p := newProduct(t, "LAMP", model.NewBatch("b1", "LAMP", 10, nil))
	_, ok := p.Allocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 2})
	require.True(t, ok)

	_, err := p.Deallocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 3})

	assert.ErrorIs(t, err, model.ErrNoAllocationFound)
}

func TestProduct_ChangeBatchQuantityUnknownBatch(t *testing.T) {
	p := newProduct(t, "LAMP", model.NewBatch("b1", "LAMP", 10, nil))

	err := p.ChangeBatchQuantity("missing", 5)

	assert.ErrorIs(t, err, model.ErrUnknownBatch)
}

func TestProduct_ChangeBatchQuantityWithoutEviction(t *testing.T) {
	b := model.NewBatch("b1", "LAMP", 10, nil)
	p := newProduct(t, "LAMP", b)
	_, _ = p.Allocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 4})
	p.PullMessages()

	require.NoError(t, p.ChangeBatchQuantity("b1", 4))

	assert.Equal(t, 0, b.AvailableQuantity())
	assert.Empty(t, p.PullMessages())
}

func TestProduct_ChangeBatchQuantityEvictsDeterministically(t *testing.T) {
	b := model.NewBatch("b1", "LAMP", 50, nil)
	p := newProduct(t, "LAMP", b)
	for _, id := range []string{"order2", "order1", "order3"} {
		_, ok := p.Allocate(model.OrderLine{OrderID: id, SKU: "LAMP", Qty: 10})
		require.True(t, ok)
	}
	p.PullMessages()
	version := p.VersionNumber()

	require.NoError(t, p.ChangeBatchQuantity("b1", 15))

	assert.Equal(t, []domain.Message{
		commands.Allocate{OrderID: "order3", SKU: "LAMP", Qty: 10},
		commands.Allocate{OrderID: "order2", SKU: "LAMP", Qty: 10},
	}, p.PullMessages())
	assert.Equal(t, []model.OrderLine{{OrderID: "order1", SKU: "LAMP", Qty: 10}}, b.Allocations())
	assert.Equal(t, 5, b.AvailableQuantity())
	assert.Equal(t, version, p.VersionNumber())
}

func TestProduct_AddBatchRejectsDuplicatesAndForeignSku(t *testing.T) {
	p := newProduct(t, "LAMP", model.NewBatch("b1", "LAMP", 10, nil))

	assert.ErrorIs(t, p.AddBatch(model.NewBatch("b1", "LAMP", 5, nil)), model.ErrDuplicateBatch)
	assert.ErrorIs(t, p.AddBatch(model.NewBatch("b2", "CHAIR", 5, nil)), model.ErrInvalidSku)
	assert.Len(t, p.Batches(), 1)
}
