package model

// 领域错误
var (
	ErrInvalidSku        = &DomainError{Code: "INVALID_SKU", Message: "invalid sku"}
	ErrNoAllocationFound = &DomainError{Code: "NO_ALLOCATION_FOUND", Message: "no allocation found"}
	ErrUnknownBatch      = &DomainError{Code: "UNKNOWN_BATCH", Message: "unknown batch"}
	ErrDuplicateBatch    = &DomainError{Code: "DUPLICATE_BATCH", Message: "batch already exists"}
)

// DomainError 前置条件不满足时返回的领域错误，Subject 为出错对象（sku、批次号、订单号）
type DomainError struct {
	Code    string
	Message string
	Subject string
}

func (e *DomainError) Error() string {
	if e.Subject != "" {
		return e.Message + " " + e.Subject
	}
	return e.Message
}

// Is 按 Code 比较，使带 Subject 的实例能匹配哨兵错误
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

func (e *DomainError) about(subject string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Subject: subject}
}

// InvalidSku 产品不存在
func InvalidSku(sku string) error {
	return ErrInvalidSku.about(sku)
}

// NoAllocationFound 订单行未分配在该产品的任何批次上
func NoAllocationFound(orderID string) error {
	return ErrNoAllocationFound.about(orderID)
}

// UnknownBatch 批次号不属于该产品
func UnknownBatch(ref string) error {
	return ErrUnknownBatch.about(ref)
}

// DuplicateBatch 批次号已存在
func DuplicateBatch(ref string) error {
	return ErrDuplicateBatch.about(ref)
}
