// Package validation 提供字段校验与命令校验
package validation

import (
	"fmt"
	"net/mail"
	"strings"

	"allocation/domain/commands"
	"allocation/errors"
)

const maxIdentifierLength = 64

// IValidator 通用验证器接口
type IValidator interface {
	Validate(value any) error
}

// ValidateRequired 验证必填字段
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewError(errors.ErrCodeValidation, fmt.Sprintf("%s不能为空", fieldName))
	}
	return nil
}

// ValidateStringLength 验证字符串长度，max 为 0 表示不限
func ValidateStringLength(value, fieldName string, min, max int) error {
	length := len(value)
	if length < min {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s长度不能少于%d个字符（当前%d）", fieldName, min, length))
	}
	if max > 0 && length > max {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s长度不能超过%d个字符（当前%d）", fieldName, max, length))
	}
	return nil
}

// ValidateIdentifier 订单号、SKU、批次号：必填且不超过存储列宽
func ValidateIdentifier(value, fieldName string) error {
	if err := ValidateRequired(value, fieldName); err != nil {
		return err
	}
	return ValidateStringLength(value, fieldName, 1, maxIdentifierLength)
}

// ValidatePositive 验证正数
func ValidatePositive(value int, fieldName string) error {
	if value <= 0 {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s必须为正数（当前%d）", fieldName, value))
	}
	return nil
}

// ValidateNonNegative 验证非负数
func ValidateNonNegative(value int, fieldName string) error {
	if value < 0 {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s不能为负数（当前%d）", fieldName, value))
	}
	return nil
}

// ValidateEmail 验证邮箱地址
func ValidateEmail(email string) error {
	if err := ValidateRequired(email, "邮箱"); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.NewError(errors.ErrCodeValidation, "邮箱格式不正确")
	}
	return nil
}

// CommandValidator 校验命令字段
type CommandValidator struct{}

// Validate 非命令值直接通过
func (CommandValidator) Validate(value any) error {
	cmd, ok := value.(commands.Command)
	if !ok {
		return nil
	}
	return ValidateCommand(cmd)
}

// ValidateCommand 按命令类型校验，返回第一个错误
func ValidateCommand(cmd commands.Command) error {
	var checks []error
	switch c := cmd.(type) {
	case commands.Allocate:
		checks = []error{
			ValidateIdentifier(c.OrderID, "orderid"),
			ValidateIdentifier(c.SKU, "sku"),
			ValidatePositive(c.Qty, "qty"),
		}
	case commands.Deallocate:
		checks = []error{
			ValidateIdentifier(c.OrderID, "orderid"),
			ValidateIdentifier(c.SKU, "sku"),
			ValidatePositive(c.Qty, "qty"),
		}
	case commands.CreateBatch:
		checks = []error{
			ValidateIdentifier(c.Ref, "ref"),
			ValidateIdentifier(c.SKU, "sku"),
			ValidateNonNegative(c.Qty, "qty"),
		}
	case commands.ChangeBatchQuantity:
		checks = []error{
			ValidateIdentifier(c.Ref, "batchref"),
			ValidateNonNegative(c.Qty, "qty"),
		}
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
