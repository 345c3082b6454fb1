package readmodel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"allocation/storage/database"
	"allocation/storage/database/basic"
	"allocation/storage/schema"
)

func TestMemoryView_StagedUntilCommit(t *testing.T) {
	ctx := context.Background()
	view := NewMemoryView()
	w := view.Session()

	require.NoError(t, w.Add(ctx, "o1", "LAMP", "b1"))
	rows, _ := view.Allocations(ctx, "o1")
	assert.Empty(t, rows)

	w.Commit()
	rows, _ = view.Allocations(ctx, "o1")
	assert.Equal(t, []Allocation{{OrderID: "o1", SKU: "LAMP", BatchRef: "b1"}}, rows)
}

func TestMemoryView_AddIsIdempotentAndRemoveBySku(t *testing.T) {
	ctx := context.Background()
	view := NewMemoryView()
	w := view.Session()
	_ = w.Add(ctx, "o1", "LAMP", "b1")
	_ = w.Add(ctx, "o1", "LAMP", "b1")
	_ = w.Add(ctx, "o1", "CHAIR", "b9")
	w.Commit()

	rows, _ := view.Allocations(ctx, "o1")
	assert.Len(t, rows, 2)
	assert.Equal(t, "CHAIR", rows[0].SKU)

	w = view.Session()
	_ = w.Add(ctx, "o1", "LAMP", "b2")
	w.Commit()
	rows, _ = view.Allocations(ctx, "o1")
	assert.Equal(t, []Allocation{
		{OrderID: "o1", SKU: "CHAIR", BatchRef: "b9"},
		{OrderID: "o1", SKU: "LAMP", BatchRef: "b2"},
	}, rows)

	w = view.Session()
	_ = w.Remove(ctx, "o1", "LAMP")
	w.Discard()
	w.Commit()
	rows, _ = view.Allocations(ctx, "o1")
	assert.Len(t, rows, 2)

	w = view.Session()
	_ = w.Remove(ctx, "o1", "LAMP")
	w.Commit()
	rows, _ = view.Allocations(ctx, "o1")
	assert.Equal(t, []Allocation{{OrderID: "o1", SKU: "CHAIR", BatchRef: "b9"}}, rows)
}

func TestSQLView_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "view.db") + "?_pragma=busy_timeout(5000)"
	db, err := basic.New(database.DBConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, schema.Ensure(ctx, db))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	w := NewSQLWriter(func(context.Context) (database.IQuerier, error) { return tx, nil })
	require.NoError(t, w.Add(ctx, "o1", "LAMP", "b0"))
	require.NoError(t, w.Add(ctx, "o1", "LAMP", "b1"))
	require.NoError(t, w.Add(ctx, "o1", "LAMP", "b1"))
	require.NoError(t, w.Add(ctx, "o1", "TABLE", "b2"))
	require.NoError(t, tx.Commit())

	r := NewSQLReader(db)
	rows, err := r.Allocations(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, []Allocation{
		{OrderID: "o1", SKU: "LAMP", BatchRef: "b1"},
		{OrderID: "o1", SKU: "TABLE", BatchRef: "b2"},
	}, rows)

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	w = NewSQLWriter(func(context.Context) (database.IQuerier, error) { return tx, nil })
	require.NoError(t, w.Remove(ctx, "o1", "LAMP"))
	require.NoError(t, tx.Commit())

	rows, err = r.Allocations(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	empty, err := r.Allocations(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

type countingReader struct {
	calls int
	rows  []Allocation
}

func (c *countingReader) Allocations(ctx context.Context, orderID string) ([]Allocation, error) {
	c.calls++
	return c.rows, nil
}

func TestCachedReader_HitsAndInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &countingReader{rows: []Allocation{{OrderID: "o1", SKU: "LAMP", BatchRef: "b1"}}}
	cached := NewCachedReader(inner, CacheConfig{MaxSize: 8})

	_, _ = cached.Allocations(ctx, "o1")
	rows, _ := cached.Allocations(ctx, "o1")
	assert.Equal(t, 1, inner.calls)
	assert.Len(t, rows, 1)

	cached.Invalidate(ctx, "o1")
	_, _ = cached.Allocations(ctx, "o1")
	assert.Equal(t, 2, inner.calls)

	stats := cached.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.InDelta(t, 1.0/3.0, stats.HitRate(), 0.001)
}
