// Package database 提供基于 database/sql 的最小数据库抽象，隔离具体驱动
package database

import (
	"context"
	"database/sql"
)

// IQuerier 查询与执行
type IQuerier interface {
	Query(ctx context.Context, query string, args ...any) (IRows, error)
	QueryRow(ctx context.Context, query string, args ...any) IRow
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// QuerierFunc 按需返回当前事务；工作单元借此延迟开启事务
type QuerierFunc func(ctx context.Context) (IQuerier, error)

// IDatabase 数据库连接池
type IDatabase interface {
	IQuerier

	BeginTx(ctx context.Context, opts *sql.TxOptions) (ITransaction, error)
	Ping(ctx context.Context) error
	Close() error

	// DialectName 返回底层方言名（sqlite、postgres、mysql）
	DialectName() string
}

// ITransaction 事务
type ITransaction interface {
	IQuerier

	Commit() error
	Rollback() error
	DialectName() string
}

// IRows 查询结果集
type IRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// IRow 单行结果
type IRow interface {
	Scan(dest ...any) error
}

// DBConfig 数据库配置
type DBConfig struct {
	Driver string `yaml:"driver"` // sqlite, pgx, mysql, memory
	DSN    string `yaml:"dsn"`

	MaxOpenConns    int `yaml:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"` // 秒
}
