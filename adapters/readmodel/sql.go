package readmodel

import (
	"context"
	"fmt"

	"allocation/storage/database"
)

// SQLWriter 在工作单元的事务内写 allocations_view
type SQLWriter struct {
	querier database.QuerierFunc
}

// NewSQLWriter 创建写入端
func NewSQLWriter(querier database.QuerierFunc) *SQLWriter {
	return &SQLWriter{querier: querier}
}

// Add 按 (订单号, sku) 覆盖写入：重试不产生重复行，订单行换批次后旧记录被替换
func (w *SQLWriter) Add(ctx context.Context, orderID, sku, batchRef string) error {
	q, err := w.querier(ctx)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx,
		"DELETE FROM allocations_view WHERE orderid = ? AND sku = ?",
		orderID, sku); err != nil {
		return fmt.Errorf("add allocation view: %w", err)
	}
	if _, err := q.Exec(ctx,
		"INSERT INTO allocations_view (orderid, sku, batchref) VALUES (?, ?, ?)",
		orderID, sku, batchRef); err != nil {
		return fmt.Errorf("add allocation view: %w", err)
	}
	return nil
}

func (w *SQLWriter) Remove(ctx context.Context, orderID, sku string) error {
	q, err := w.querier(ctx)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx,
		"DELETE FROM allocations_view WHERE orderid = ? AND sku = ?", orderID, sku); err != nil {
		return fmt.Errorf("remove allocation view: %w", err)
	}
	return nil
}

// SQLReader 直接在连接池上查询，不经过工作单元
type SQLReader struct {
	db database.IQuerier
}

// NewSQLReader 创建查询端
func NewSQLReader(db database.IQuerier) *SQLReader {
	return &SQLReader{db: db}
}

func (r *SQLReader) Allocations(ctx context.Context, orderID string) ([]Allocation, error) {
	rows, err := r.db.Query(ctx,
		"SELECT sku, batchref FROM allocations_view WHERE orderid = ? ORDER BY sku, batchref", orderID)
	if err != nil {
		return nil, fmt.Errorf("query allocations view: %w", err)
	}
	defer rows.Close()

	out := []Allocation{}
	for rows.Next() {
		a := Allocation{OrderID: orderID}
		if err := rows.Scan(&a.SKU, &a.BatchRef); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
