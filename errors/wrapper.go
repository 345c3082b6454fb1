package errors

import (
	"context"
	"fmt"
	"runtime"

	"allocation/logging"
)

// WrapWithLog 包装错误并记录警告日志
func WrapWithLog(ctx context.Context, err error, code ErrorCode, msg string, fields ...logging.Field) error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	all := append([]logging.Field{
		logging.Error(err),
		logging.String("error_code", string(code)),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
	}, fields...)
	logging.GetLogger().Warn(ctx, msg, all...)
	return WrapError(err, code, msg)
}

// WrapDatabaseError 包装数据库错误
func WrapDatabaseError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	return WrapWithLog(ctx, err, ErrCodeDatabase, "数据库操作失败: "+operation, logging.String("operation", operation))
}
