package unitofwork

import (
	"context"
	"database/sql"
	"fmt"

	"allocation/adapters/readmodel"
	"allocation/adapters/repository"
	"allocation/domain"
	"allocation/logging"
	"allocation/storage/database"
	"allocation/storage/database/dialect"
)

// SQLFactory 基于数据库事务的工作单元工厂
type SQLFactory struct {
	db     database.IDatabase
	opts   *sql.TxOptions
	logger logging.Logger
}

// NewSQLFactory 创建工厂；opts 为 nil 时按方言取默认隔离级别
func NewSQLFactory(db database.IDatabase, opts *sql.TxOptions) *SQLFactory {
	if opts == nil {
		opts = defaultTxOptions(db.DialectName())
	}
	return &SQLFactory{db: db, opts: opts, logger: logging.ComponentLogger("uow.sql")}
}

// defaultTxOptions postgres 与 mysql 使用可重复读；sqlite 的写事务本身串行，用驱动默认
func defaultTxOptions(name string) *sql.TxOptions {
	switch dialect.Name(name) {
	case dialect.NamePostgres, dialect.NameMySQL:
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	}
	return nil
}

// Begin 事务延迟到首次访问存储时开启
func (f *SQLFactory) Begin(ctx context.Context) (IUnitOfWork, error) {
	u := &sqlUnitOfWork{factory: f, tracker: repository.NewTracker()}
	u.products = repository.NewTrackingRepository(repository.NewSQLStore(u.querier), u.tracker)
	u.writer = readmodel.NewSQLWriter(u.querier)
	return u, nil
}

type sqlUnitOfWork struct {
	factory  *SQLFactory
	tx       database.ITransaction
	tracker  *repository.Tracker
	products *repository.TrackingRepository
	writer   *readmodel.SQLWriter
}

func (u *sqlUnitOfWork) querier(ctx context.Context) (database.IQuerier, error) {
	if u.tx != nil {
		return u.tx, nil
	}
	tx, err := u.factory.db.BeginTx(ctx, u.factory.opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	u.tx = tx
	return tx, nil
}

func (u *sqlUnitOfWork) Products() repository.IProductRepository { return u.products }
func (u *sqlUnitOfWork) Allocations() readmodel.IWriter          { return u.writer }
func (u *sqlUnitOfWork) Seen() *repository.Tracker               { return u.tracker }

func (u *sqlUnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil && u.tracker.Len() == 0 {
		return nil
	}
	if err := u.products.Flush(ctx); err != nil {
		u.rollback(ctx)
		return err
	}
	if _, err := u.querier(ctx); err != nil {
		return err
	}

	err := u.tx.Commit()
	u.tx = nil
	if err != nil {
		if dialect.IsConcurrencyConflict(err) {
			u.factory.logger.Warn(ctx, "commit rejected by store", logging.Error(err))
			return repository.ConcurrencyConflict("", err)
		}
		return fmt.Errorf("commit: %w", err)
	}
	u.tracker.MarkPersisted()
	u.factory.logger.Debug(ctx, "unit of work committed", logging.Int("products", u.tracker.Len()))
	return nil
}

func (u *sqlUnitOfWork) Rollback(ctx context.Context) error {
	u.rollback(ctx)
	return nil
}

func (u *sqlUnitOfWork) rollback(ctx context.Context) {
	if u.tx == nil {
		return
	}
	if err := u.tx.Rollback(); err != nil {
		u.factory.logger.Warn(ctx, "rollback failed", logging.Error(err))
	}
	u.tx = nil
}

func (u *sqlUnitOfWork) CollectNewMessages() []domain.Message {
	return collect(u.tracker)
}
