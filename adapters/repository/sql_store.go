package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"allocation/domain/model"
	sharederrors "allocation/errors"
	"allocation/logging"
	"allocation/storage/database"
	"allocation/storage/database/dialect"
)

// SQLStore 基于 products/batches/allocations 三张表的产品存储
type SQLStore struct {
	querier database.QuerierFunc
	logger  logging.Logger
}

// NewSQLStore 创建 SQL 存储
func NewSQLStore(querier database.QuerierFunc) *SQLStore {
	return &SQLStore{
		querier: querier,
		logger:  logging.ComponentLogger("repository.sql"),
	}
}

func (s *SQLStore) Load(ctx context.Context, sku string) (*model.Product, int64, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return nil, 0, err
	}

	var version, revision int64
	err = q.QueryRow(ctx, "SELECT version_number, revision FROM products WHERE sku = ?", sku).Scan(&version, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, s.wrap(ctx, sku, "load product "+sku, err)
	}

	batches, err := s.loadBatches(ctx, q, sku)
	if err != nil {
		return nil, 0, s.wrap(ctx, sku, "load batches of "+sku, err)
	}
	return model.NewProduct(sku, batches, version), revision, nil
}

func (s *SQLStore) LoadByBatchReference(ctx context.Context, ref string) (*model.Product, int64, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return nil, 0, err
	}

	var sku string
	err = q.QueryRow(ctx, "SELECT sku FROM batches WHERE reference = ?", ref).Scan(&sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, s.wrap(ctx, "", "load batch "+ref, err)
	}
	return s.Load(ctx, sku)
}

// wrap 驱动报告的序列化/锁冲突归为并发冲突，其余记为数据库错误
func (s *SQLStore) wrap(ctx context.Context, sku, operation string, err error) error {
	if dialect.IsConcurrencyConflict(err) {
		return ConcurrencyConflict(sku, err)
	}
	return sharederrors.WrapDatabaseError(ctx, err, operation)
}

func (s *SQLStore) loadBatches(ctx context.Context, q database.IQuerier, sku string) ([]*model.Batch, error) {
	rows, err := q.Query(ctx,
		"SELECT reference, purchased_quantity, eta FROM batches WHERE sku = ? ORDER BY reference", sku)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		batches []*model.Batch
		byRef   = make(map[string]*model.Batch)
	)
	for rows.Next() {
		var (
			ref string
			qty int
			eta sql.NullString
		)
		if err := rows.Scan(&ref, &qty, &eta); err != nil {
			return nil, err
		}
		parsed, err := parseETA(eta)
		if err != nil {
			return nil, fmt.Errorf("batch %s: %w", ref, err)
		}
		b := model.NewBatch(ref, sku, qty, parsed)
		batches = append(batches, b)
		byRef[ref] = b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := q.Query(ctx, "SELECT batchref, orderid, sku, qty FROM allocations WHERE sku = ?", sku)
	if err != nil {
		return nil, err
	}
	defer lines.Close()
	for lines.Next() {
		var (
			ref  string
			line model.OrderLine
		)
		if err := lines.Scan(&ref, &line.OrderID, &line.SKU, &line.Qty); err != nil {
			return nil, err
		}
		if b, ok := byRef[ref]; ok {
			b.RestoreAllocation(line)
		}
	}
	return batches, lines.Err()
}

// Save 先对 products.revision 做比较并交换，成功后重写该产品的批次与分配。
// version_number 照写领域版本号，不参与比较。
func (s *SQLStore) Save(ctx context.Context, p *model.Product, expectedRevision int64, isNew bool) error {
	q, err := s.querier(ctx)
	if err != nil {
		return err
	}

	if isNew {
		_, err = q.Exec(ctx, "INSERT INTO products (sku, version_number, revision) VALUES (?, ?, ?)",
			p.SKU, p.VersionNumber(), expectedRevision+1)
	} else {
		var res sql.Result
		res, err = q.Exec(ctx,
			"UPDATE products SET version_number = ?, revision = revision + 1 WHERE sku = ? AND revision = ?",
			p.VersionNumber(), p.SKU, expectedRevision)
		if err == nil {
			var n int64
			if n, err = res.RowsAffected(); err == nil && n == 0 {
				s.logger.Warn(ctx, "revision check failed",
					logging.String("sku", p.SKU), logging.Int64("expected_revision", expectedRevision))
				return ConcurrencyConflict(p.SKU, nil)
			}
		}
	}
	if err != nil {
		if dialect.IsUniqueViolation(err) {
			return ConcurrencyConflict(p.SKU, err)
		}
		return s.wrap(ctx, p.SKU, "save product "+p.SKU, err)
	}

	if err := s.writeBatches(ctx, q, p); err != nil {
		return s.wrap(ctx, p.SKU, "save batches of "+p.SKU, err)
	}
	return nil
}

func (s *SQLStore) writeBatches(ctx context.Context, q database.IQuerier, p *model.Product) error {
	if _, err := q.Exec(ctx, "DELETE FROM allocations WHERE sku = ?", p.SKU); err != nil {
		return err
	}
	if _, err := q.Exec(ctx, "DELETE FROM batches WHERE sku = ?", p.SKU); err != nil {
		return err
	}
	for _, b := range p.Batches() {
		if _, err := q.Exec(ctx,
			"INSERT INTO batches (reference, sku, purchased_quantity, eta) VALUES (?, ?, ?, ?)",
			b.Reference, b.SKU, b.PurchasedQuantity(), formatETA(b.ETA)); err != nil {
			return err
		}
		for _, line := range b.Allocations() {
			if _, err := q.Exec(ctx,
				"INSERT INTO allocations (batchref, orderid, sku, qty) VALUES (?, ?, ?, ?)",
				b.Reference, line.OrderID, line.SKU, line.Qty); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatETA(eta *time.Time) sql.NullString {
	if eta == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: eta.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseETA(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
