package unitofwork

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"allocation/adapters/readmodel"
	"allocation/adapters/repository"
	"allocation/domain"
	"allocation/domain/events"
	"allocation/domain/model"
	"allocation/storage/database"
	"allocation/storage/database/basic"
	"allocation/storage/database/dialect"
	"allocation/storage/schema"
)

type fixture struct {
	name    string
	factory IUnitOfWorkFactory
	reader  readmodel.IReader
}

func newSQLiteFactory(t *testing.T) (*SQLFactory, *basic.DB) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "uow.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := basic.New(database.DBConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, schema.Ensure(context.Background(), db))
	return NewSQLFactory(db, nil), db
}

func fixtures(t *testing.T) []fixture {
	mem := NewMemoryFactory()
	sqlFactory, db := newSQLiteFactory(t)
	return []fixture{
		{name: "memory", factory: mem, reader: mem.View},
		{name: "sqlite", factory: sqlFactory, reader: readmodel.NewSQLReader(db)},
	}
}

func seedProduct(t *testing.T, f IUnitOfWorkFactory, sku string, batches ...*model.Batch) {
	t.Helper()
	ctx := context.Background()
	_, _, err := Run(ctx, f, func(ctx context.Context, uow IUnitOfWork) (struct{}, error) {
		p := model.NewProduct(sku, nil, 0)
		for _, b := range batches {
			if err := p.AddBatch(b); err != nil {
				return struct{}{}, err
			}
		}
		if err := uow.Products().Add(ctx, p); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, uow.Commit(ctx)
	})
	require.NoError(t, err)
}

func loadProduct(t *testing.T, f IUnitOfWorkFactory, sku string) *model.Product {
	t.Helper()
	p, _, err := Run(context.Background(), f, func(ctx context.Context, uow IUnitOfWork) (*model.Product, error) {
		return uow.Products().Get(ctx, sku)
	})
	require.NoError(t, err)
	return p
}

func TestUnitOfWork_CommitPersistsAllocation(t *testing.T) {
	for _, fx := range fixtures(t) {
		t.Run(fx.name, func(t *testing.T) {
			seedProduct(t, fx.factory, "HIPSTER-WORKBENCH", model.NewBatch("batch1", "HIPSTER-WORKBENCH", 100, nil))

			ref, msgs, err := Run(context.Background(), fx.factory, func(ctx context.Context, uow IUnitOfWork) (string, error) {
				p, err := uow.Products().Get(ctx, "HIPSTER-WORKBENCH")
				if err != nil {
					return "", err
				}
				ref, _ := p.Allocate(model.OrderLine{OrderID: "o1", SKU: "HIPSTER-WORKBENCH", Qty: 10})
				return ref, uow.Commit(ctx)
			})
			require.NoError(t, err)
			assert.Equal(t, "batch1", ref)
			assert.Equal(t, []domain.Message{
				events.Allocated{OrderID: "o1", SKU: "HIPSTER-WORKBENCH", Qty: 10, BatchRef: "batch1"},
			}, msgs)

			p := loadProduct(t, fx.factory, "HIPSTER-WORKBENCH")
			require.NotNil(t, p)
			assert.Equal(t, int64(1), p.VersionNumber())
			b, _ := p.Batch("batch1")
			assert.Equal(t, 90, b.AvailableQuantity())
		})
	}
}

func TestUnitOfWork_NoCommitDiscardsWrites(t *testing.T) {
	for _, fx := range fixtures(t) {
		t.Run(fx.name, func(t *testing.T) {
			_, _, err := Run(context.Background(), fx.factory, func(ctx context.Context, uow IUnitOfWork) (struct{}, error) {
				if err := uow.Allocations().Add(ctx, "o1", "LAMP", "b1"); err != nil {
					return struct{}{}, err
				}
				return struct{}{}, uow.Products().Add(ctx, model.NewProduct("LAMP", nil, 0))
			})
			require.NoError(t, err)

			assert.Nil(t, loadProduct(t, fx.factory, "LAMP"))
			rows, err := fx.reader.Allocations(context.Background(), "o1")
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestUnitOfWork_RollsBackOnError(t *testing.T) {
	boom := errors.New("boom")
	for _, fx := range fixtures(t) {
		t.Run(fx.name, func(t *testing.T) {
			_, msgs, err := Run(context.Background(), fx.factory, func(ctx context.Context, uow IUnitOfWork) (struct{}, error) {
				p := model.NewProduct("LAMP", nil, 0)
				p.Record(events.OutOfStock{SKU: "LAMP"})
				_ = uow.Products().Add(ctx, p)
				return struct{}{}, boom
			})
			require.ErrorIs(t, err, boom)
			assert.Nil(t, msgs)
			assert.Nil(t, loadProduct(t, fx.factory, "LAMP"))
		})
	}
}

func TestUnitOfWork_RollsBackOnPanic(t *testing.T) {
	for _, fx := range fixtures(t) {
		t.Run(fx.name, func(t *testing.T) {
			assert.Panics(t, func() {
				_, _, _ = Run(context.Background(), fx.factory, func(ctx context.Context, uow IUnitOfWork) (struct{}, error) {
					_ = uow.Products().Add(ctx, model.NewProduct("LAMP", nil, 0))
					_ = uow.Allocations().Add(ctx, "o1", "LAMP", "b1")
					panic("handler bug")
				})
			})
			assert.Nil(t, loadProduct(t, fx.factory, "LAMP"))
		})
	}
}

func TestUnitOfWork_RollbackIsIdempotent(t *testing.T) {
	for _, fx := range fixtures(t) {
		t.Run(fx.name, func(t *testing.T) {
			ctx := context.Background()
			uow, err := fx.factory.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, uow.Products().Add(ctx, model.NewProduct("LAMP", nil, 0)))
			require.NoError(t, uow.Commit(ctx))
			require.NoError(t, uow.Rollback(ctx))
			require.NoError(t, uow.Rollback(ctx))

			assert.NotNil(t, loadProduct(t, fx.factory, "LAMP"))
		})
	}
}

func TestUnitOfWork_SeenTracksLoadedProducts(t *testing.T) {
	for _, fx := range fixtures(t) {
		t.Run(fx.name, func(t *testing.T) {
			seedProduct(t, fx.factory, "A", model.NewBatch("ba", "A", 1, nil))
			seedProduct(t, fx.factory, "B", model.NewBatch("bb", "B", 1, nil))

			ctx := context.Background()
			uow, err := fx.factory.Begin(ctx)
			require.NoError(t, err)
			defer uow.Rollback(ctx)

			_, err = uow.Products().GetByBatchReference(ctx, "bb")
			require.NoError(t, err)
			_, err = uow.Products().Get(ctx, "A")
			require.NoError(t, err)
			_, err = uow.Products().Get(ctx, "B")
			require.NoError(t, err)

			skus := []string{}
			for _, p := range uow.Seen().Products() {
				skus = append(skus, p.SKU)
			}
			assert.Equal(t, []string{"B", "A"}, skus)
		})
	}
}

func TestUnitOfWork_StaleCommitConflicts(t *testing.T) {
	for _, fx := range fixtures(t) {
		t.Run(fx.name, func(t *testing.T) {
			ctx := context.Background()
			seedProduct(t, fx.factory, "LAMP", model.NewBatch("b1", "LAMP", 100, nil))

			u1, err := fx.factory.Begin(ctx)
			require.NoError(t, err)
			defer u1.Rollback(ctx)
			u2, err := fx.factory.Begin(ctx)
			require.NoError(t, err)
			defer u2.Rollback(ctx)

			p1, err := u1.Products().Get(ctx, "LAMP")
			require.NoError(t, err)
			p2, err := u2.Products().Get(ctx, "LAMP")
			require.NoError(t, err)

			p1.Allocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 10})
			p2.Allocate(model.OrderLine{OrderID: "o2", SKU: "LAMP", Qty: 10})

			require.NoError(t, u1.Commit(ctx))
			assert.ErrorIs(t, u2.Commit(ctx), repository.ErrConcurrencyConflict)

			p := loadProduct(t, fx.factory, "LAMP")
			b, _ := p.Batch("b1")
			assert.Equal(t, []model.OrderLine{{OrderID: "o1", SKU: "LAMP", Qty: 10}}, b.Allocations())
			assert.Equal(t, int64(1), p.VersionNumber())
		})
	}
}

func TestUnitOfWork_StaleScopeDoesNotDropConcurrentBatch(t *testing.T) {
	for _, fx := range fixtures(t) {
		t.Run(fx.name, func(t *testing.T) {
			ctx := context.Background()
			seedProduct(t, fx.factory, "LAMP", model.NewBatch("b1", "LAMP", 100, nil))

			stale, err := fx.factory.Begin(ctx)
			require.NoError(t, err)
			defer stale.Rollback(ctx)
			p, err := stale.Products().Get(ctx, "LAMP")
			require.NoError(t, err)

			_, _, err = Run(ctx, fx.factory, func(ctx context.Context, uow IUnitOfWork) (struct{}, error) {
				q, err := uow.Products().Get(ctx, "LAMP")
				if err != nil {
					return struct{}{}, err
				}
				if err := q.AddBatch(model.NewBatch("b2", "LAMP", 50, nil)); err != nil {
					return struct{}{}, err
				}
				return struct{}{}, uow.Commit(ctx)
			})
			require.NoError(t, err)

			_, ok := p.Allocate(model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 10})
			require.True(t, ok)
			assert.ErrorIs(t, stale.Commit(ctx), repository.ErrConcurrencyConflict)

			got := loadProduct(t, fx.factory, "LAMP")
			_, ok = got.Batch("b2")
			assert.True(t, ok)
			b1, _ := got.Batch("b1")
			assert.Empty(t, b1.Allocations())
		})
	}
}

func TestUnitOfWork_StaleScopeConflictsAfterVersionNeutralChange(t *testing.T) {
	for _, fx := range fixtures(t) {
		t.Run(fx.name, func(t *testing.T) {
			ctx := context.Background()
			seedProduct(t, fx.factory, "LAMP", model.NewBatch("b1", "LAMP", 100, nil))

			stale, err := fx.factory.Begin(ctx)
			require.NoError(t, err)
			defer stale.Rollback(ctx)
			p, err := stale.Products().Get(ctx, "LAMP")
			require.NoError(t, err)

			_, _, err = Run(ctx, fx.factory, func(ctx context.Context, uow IUnitOfWork) (struct{}, error) {
				q, err := uow.Products().Get(ctx, "LAMP")
				if err != nil {
					return struct{}{}, err
				}
				if err := q.ChangeBatchQuantity("b1", 40); err != nil {
					return struct{}{}, err
				}
				return struct{}{}, uow.Commit(ctx)
			})
			require.NoError(t, err)

			line := model.OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 10}
			p.Allocate(line)
			_, err = p.Deallocate(line)
			require.NoError(t, err)
			assert.ErrorIs(t, stale.Commit(ctx), repository.ErrConcurrencyConflict)

			b1, _ := loadProduct(t, fx.factory, "LAMP").Batch("b1")
			assert.Equal(t, 40, b1.PurchasedQuantity())
		})
	}
}

func TestSQLUnitOfWork_ConcurrentAllocationsOneWins(t *testing.T) {
	factory, db := newSQLiteFactory(t)
	ctx := context.Background()
	seedProduct(t, factory, "LAMP", model.NewBatch("b1", "LAMP", 100, nil))

	var (
		loaded sync.WaitGroup
		done   sync.WaitGroup
		errs   = make([]error, 2)
	)
	loaded.Add(2)
	done.Add(2)
	for i, order := range []string{"o1", "o2"} {
		go func(i int, order string) {
			defer done.Done()
			_, _, errs[i] = Run(ctx, factory, func(ctx context.Context, uow IUnitOfWork) (struct{}, error) {
				p, err := uow.Products().Get(ctx, "LAMP")
				loaded.Done()
				if err != nil {
					return struct{}{}, err
				}
				loaded.Wait()
				p.Allocate(model.OrderLine{OrderID: order, SKU: "LAMP", Qty: 10})
				return struct{}{}, uow.Commit(ctx)
			})
		}(i, order)
	}
	done.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrConcurrencyConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	var version, rows int
	require.NoError(t, db.QueryRow(ctx, "SELECT version_number FROM products WHERE sku = ?", "LAMP").Scan(&version))
	require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM allocations WHERE sku = ?", "LAMP").Scan(&rows))
	assert.Equal(t, 1, version)
	assert.Equal(t, 1, rows)
}

func TestDefaultTxOptions(t *testing.T) {
	assert.Nil(t, defaultTxOptions(string(dialect.NameSQLite)))
	for _, name := range []dialect.Name{dialect.NamePostgres, dialect.NameMySQL} {
		opts := defaultTxOptions(string(name))
		require.NotNil(t, opts, name)
		assert.Equal(t, sql.LevelRepeatableRead, opts.Isolation)
	}
}
