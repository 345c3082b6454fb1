// Package unitofwork 定义事务边界：一个工作单元内的读取、修改与提交要么全部生效，要么全部放弃
package unitofwork

import (
	"context"

	"allocation/adapters/readmodel"
	"allocation/adapters/repository"
	"allocation/domain"
)

// IUnitOfWork 工作单元
type IUnitOfWork interface {
	// Products 绑定到本工作单元的产品仓储
	Products() repository.IProductRepository

	// Allocations 绑定到本工作单元的读模型写入端
	Allocations() readmodel.IWriter

	// Seen 本工作单元内取回或新增过的产品
	Seen() *repository.Tracker

	// Commit 保存全部已见产品；任一产品版本已被其他事务改变时返回 ErrConcurrencyConflict
	Commit(ctx context.Context) error

	// Rollback 放弃未提交的写入；提交后或重复调用均安全
	Rollback(ctx context.Context) error

	// CollectNewMessages 按首次登记顺序取出已见产品的待发消息
	CollectNewMessages() []domain.Message
}

// IUnitOfWorkFactory 开启工作单元
type IUnitOfWorkFactory interface {
	Begin(ctx context.Context) (IUnitOfWork, error)
}

// Run 在一个工作单元内执行 fn，返回结果与 fn 成功后收集到的新消息。
// 无论 fn 返回错误还是 panic，未提交的写入都会被回滚。
func Run[T any](ctx context.Context, factory IUnitOfWorkFactory, fn func(ctx context.Context, uow IUnitOfWork) (T, error)) (T, []domain.Message, error) {
	var zero T
	uow, err := factory.Begin(ctx)
	if err != nil {
		return zero, nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	result, err := fn(ctx, uow)
	if err != nil {
		return zero, nil, err
	}
	return result, uow.CollectNewMessages(), nil
}

func collect(tracker *repository.Tracker) []domain.Message {
	var out []domain.Message
	for _, p := range tracker.Products() {
		out = append(out, p.PullMessages()...)
	}
	return out
}
