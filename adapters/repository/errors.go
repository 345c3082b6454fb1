package repository

// 常见错误
var (
	ErrConcurrencyConflict = &RepositoryError{Code: "CONCURRENCY_CONFLICT", Message: "concurrent modification"}
	ErrProductExists       = &RepositoryError{Code: "PRODUCT_EXISTS", Message: "product already tracked"}
)

// RepositoryError 仓储错误，按 Code 判等
type RepositoryError struct {
	Code     string
	Message  string
	EntityID string
	Cause    error
}

func (e *RepositoryError) Error() string {
	msg := e.Message
	if e.EntityID != "" {
		msg += " (" + e.EntityID + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RepositoryError) Unwrap() error {
	return e.Cause
}

// ConcurrencyConflict 供上层按行为识别冲突，无需依赖本包
func (e *RepositoryError) ConcurrencyConflict() bool {
	return e.Code == ErrConcurrencyConflict.Code
}

func (e *RepositoryError) Is(target error) bool {
	t, ok := target.(*RepositoryError)
	return ok && t.Code == e.Code
}

// ConcurrencyConflict 产品在读取后被其他事务修改
func ConcurrencyConflict(sku string, cause error) error {
	return &RepositoryError{
		Code:     ErrConcurrencyConflict.Code,
		Message:  ErrConcurrencyConflict.Message,
		EntityID: sku,
		Cause:    cause,
	}
}
