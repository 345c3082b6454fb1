package middleware

import (
	"context"

	"allocation/domain"
	"allocation/domain/commands"
	"allocation/logging"
	"allocation/messaging"
	"allocation/validation"
)

// ValidationMiddleware 在命令进入工作单元前校验字段；事件直接放行
type ValidationMiddleware struct {
	validator validation.IValidator
	logger    logging.Logger
}

// NewValidationMiddleware v 为 nil 时使用 validation.CommandValidator
func NewValidationMiddleware(v validation.IValidator) *ValidationMiddleware {
	if v == nil {
		v = validation.CommandValidator{}
	}
	return &ValidationMiddleware{validator: v, logger: logging.ComponentLogger("middleware.validation")}
}

func (m *ValidationMiddleware) Name() string { return "Validation" }

func (m *ValidationMiddleware) Handle(ctx context.Context, msg domain.Message, next messaging.HandlerFunc) (any, error) {
	if _, ok := msg.(commands.Command); !ok {
		return next(ctx, msg)
	}
	if err := m.validator.Validate(msg); err != nil {
		m.logger.Warn(ctx, "command rejected", logging.String("command", msg.MessageName()), logging.Error(err))
		return nil, err
	}
	return next(ctx, msg)
}
