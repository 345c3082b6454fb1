package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"allocation/domain/entity"
	"allocation/domain/events"
)

func TestAggregate_PullMessagesDrainsInOrder(t *testing.T) {
	var agg entity.Aggregate
	agg.Record(events.OutOfStock{SKU: "A"})
	agg.Record(events.OutOfStock{SKU: "B"})

	assert.Len(t, agg.PendingMessages(), 2)

	msgs := agg.PullMessages()
	assert.Equal(t, []string{"A", "B"}, []string{
		msgs[0].(events.OutOfStock).SKU,
		msgs[1].(events.OutOfStock).SKU,
	})
	assert.Empty(t, agg.PullMessages())
}

func TestAggregate_BuffersAreIndependent(t *testing.T) {
	var a, b entity.Aggregate
	a.Record(events.OutOfStock{SKU: "A"})

	assert.Empty(t, b.PullMessages())
	assert.Len(t, a.PullMessages(), 1)
}

func TestAggregate_Version(t *testing.T) {
	var agg entity.Aggregate
	agg.SetVersion(5)
	agg.IncrementVersion()
	agg.IncrementVersion()
	agg.DecrementVersion()
	assert.Equal(t, int64(6), agg.GetVersion())
}
