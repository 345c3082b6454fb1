// Package schema 提供幂等的建表语句，不负责迁移
package schema

import (
	"context"
	"fmt"

	"allocation/storage/database"
)

// Statements 按依赖顺序排列的建表语句，三种方言通用
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		sku VARCHAR(64) NOT NULL PRIMARY KEY,
		version_number BIGINT NOT NULL DEFAULT 0,
		revision BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		reference VARCHAR(64) NOT NULL PRIMARY KEY,
		sku VARCHAR(64) NOT NULL,
		purchased_quantity INTEGER NOT NULL,
		eta VARCHAR(40) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS allocations (
		batchref VARCHAR(64) NOT NULL,
		orderid VARCHAR(64) NOT NULL,
		sku VARCHAR(64) NOT NULL,
		qty INTEGER NOT NULL,
		PRIMARY KEY (batchref, orderid, sku, qty)
	)`,
	`CREATE TABLE IF NOT EXISTS allocations_view (
		orderid VARCHAR(64) NOT NULL,
		sku VARCHAR(64) NOT NULL,
		batchref VARCHAR(64) NOT NULL,
		PRIMARY KEY (orderid, sku, batchref)
	)`,
}

// Ensure 执行全部建表语句
func Ensure(ctx context.Context, db database.IQuerier) error {
	for _, stmt := range Statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
