package errors

import (
	"context"
	stdErrors "errors"

	"allocation/domain/model"
)

// conflictError 仓储层的并发冲突错误
type conflictError interface {
	ConcurrencyConflict() bool
}

func isConcurrencyConflict(err error) bool {
	var c conflictError
	return stdErrors.As(err, &c) && c.ConcurrencyConflict()
}

// Normalize 将领域层/基础设施层的错误规范化为 AppError，保留原始错误作为 cause。
// 已是 IError 的原样返回；未识别的错误原样返回，由调用方决定是否包装。
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(IError); ok {
		return err
	}

	switch {
	case stdErrors.Is(err, model.ErrInvalidSku), stdErrors.Is(err, model.ErrDuplicateBatch):
		return WrapError(err, ErrCodeInvalidInput, "无效的请求")
	case stdErrors.Is(err, model.ErrNoAllocationFound), stdErrors.Is(err, model.ErrUnknownBatch):
		return WrapError(err, ErrCodeNotFound, "目标不存在")
	case isConcurrencyConflict(err):
		return WrapError(err, ErrCodeConcurrency, "并发修改冲突")
	case stdErrors.Is(err, context.DeadlineExceeded):
		return WrapError(err, ErrCodeTimeout, "操作超时")
	}
	return err
}
