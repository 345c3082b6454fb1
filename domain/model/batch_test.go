package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBatch_AllocatingReducesAvailable(t *testing.T) {
	b := NewBatch("batch-001", "SMALL-TABLE", 20, nil)

	assert.True(t, b.allocate(OrderLine{OrderID: "o1", SKU: "SMALL-TABLE", Qty: 2}))
	assert.Equal(t, 18, b.AvailableQuantity())
	assert.Equal(t, 2, b.AllocatedQuantity())
}

func TestBatch_CanAllocate(t *testing.T) {
	tests := []struct {
		name string
		line OrderLine
		want bool
	}{
		{"available greater than required", OrderLine{"o", "ELEGANT-LAMP", 2}, true},
		{"available equal to required", OrderLine{"o", "ELEGANT-LAMP", 20}, true},
		{"available smaller than required", OrderLine{"o", "ELEGANT-LAMP", 21}, false},
		{"sku mismatch", OrderLine{"o", "EXPENSIVE-TOASTER", 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatch("b", "ELEGANT-LAMP", 20, nil)
			assert.Equal(t, tt.want, b.CanAllocate(tt.line))
		})
	}
}

func TestBatch_AllocationIsIdempotent(t *testing.T) {
	b := NewBatch("b", "ANGULAR-DESK", 20, nil)
	line := OrderLine{"o", "ANGULAR-DESK", 2}

	b.allocate(line)
	b.allocate(line)

	assert.Equal(t, 18, b.AvailableQuantity())
}

func TestBatch_DeallocateOnlyAllocatedLines(t *testing.T) {
	b := NewBatch("b", "DECORATIVE-TRINKET", 20, nil)

	assert.False(t, b.deallocate(OrderLine{"o", "DECORATIVE-TRINKET", 2}))
	assert.Equal(t, 20, b.AvailableQuantity())
}

func TestCompareByETA(t *testing.T) {
	now := time.Now()
	soon := now.Add(time.Hour)
	inStock := NewBatch("a", "X", 1, nil)
	early := NewBatch("b", "X", 1, &now)
	late := NewBatch("c", "X", 1, &soon)

	assert.Equal(t, 0, CompareByETA(inStock, NewBatch("d", "X", 1, nil)))
	assert.Negative(t, CompareByETA(inStock, early))
	assert.Positive(t, CompareByETA(late, inStock))
	assert.Negative(t, CompareByETA(early, late))
}

func TestEqualByReference(t *testing.T) {
	assert.True(t, EqualByReference(NewBatch("a", "X", 1, nil), NewBatch("a", "Y", 9, nil)))
	assert.False(t, EqualByReference(NewBatch("a", "X", 1, nil), NewBatch("b", "X", 1, nil)))
}

func TestBatch_EvictOneTakesGreatestLine(t *testing.T) {
	b := NewBatch("b", "X", 10, nil)
	b.RestoreAllocation(OrderLine{"a", "X", 1})
	b.RestoreAllocation(OrderLine{"c", "X", 1})
	b.RestoreAllocation(OrderLine{"b", "X", 1})

	line, ok := b.evictOne()

	assert.True(t, ok)
	assert.Equal(t, "c", line.OrderID)
	assert.Len(t, b.Allocations(), 2)
}
