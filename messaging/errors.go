package messaging

import "fmt"

// ErrorCode 总线错误码
type ErrorCode string

const (
	ErrCodeHandlerNotFound  ErrorCode = "HANDLER_NOT_FOUND"
	ErrCodeHandlerExists    ErrorCode = "HANDLER_ALREADY_REGISTERED"
	ErrCodeUnknownMessage   ErrorCode = "UNKNOWN_MESSAGE"
	ErrCodeTransportStopped ErrorCode = "TRANSPORT_STOPPED"
)

// BusError 总线错误，按 Code 判等
type BusError struct {
	Code        ErrorCode
	MessageName string
	Cause       error
}

func (e *BusError) Error() string {
	msg := string(e.Code)
	if e.MessageName != "" {
		msg += ": " + e.MessageName
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (cause: %v)", msg, e.Cause)
	}
	return msg
}

func (e *BusError) Unwrap() error { return e.Cause }

func (e *BusError) Is(target error) bool {
	t, ok := target.(*BusError)
	return ok && t.Code == e.Code
}

// 哨兵错误，用于 errors.Is 比较
var (
	ErrHandlerNotFound  = &BusError{Code: ErrCodeHandlerNotFound}
	ErrHandlerExists    = &BusError{Code: ErrCodeHandlerExists}
	ErrUnknownMessage   = &BusError{Code: ErrCodeUnknownMessage}
	ErrTransportStopped = &BusError{Code: ErrCodeTransportStopped}
)

func busError(code ErrorCode, name string) error {
	return &BusError{Code: code, MessageName: name}
}
