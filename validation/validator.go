// Package validation 提供实体不变量校验的小工具
//
// 校验失败返回 INVALID_INPUT 错误，与过滤条件的 VALIDATION_ERROR 区分开，
// 调用方可以据此判断是实体状态非法还是查询参数非法。
package validation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/menu-planning/backend-sub003/errors"
)

func invalid(format string, args ...any) error {
	return errors.NewError(errors.ErrCodeInvalidInput, fmt.Sprintf(format, args...))
}

// ValidateStringLength 验证字符串长度（按字符计），max 为 0 表示不限制
func ValidateStringLength(value, fieldName string, min, max int) error {
	length := len([]rune(value))
	if length < min {
		return invalid("%s长度不能少于%d个字符（当前%d）", fieldName, min, length)
	}
	if max > 0 && length > max {
		return invalid("%s长度不能超过%d个字符（当前%d）", fieldName, max, length)
	}
	return nil
}

// ValidateRequired 验证必填字段
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return invalid("%s不能为空", fieldName)
	}
	return nil
}

// ValidateIntRange 验证整数范围
func ValidateIntRange(value int, fieldName string, min, max int) error {
	if value < min {
		return invalid("%s不能小于%d（当前%d）", fieldName, min, value)
	}
	if value > max {
		return invalid("%s不能大于%d（当前%d）", fieldName, max, value)
	}
	return nil
}

// ValidateOptionalIntRange 可空整数，nil 视为合法
func ValidateOptionalIntRange(value *int, fieldName string, min, max int) error {
	if value == nil {
		return nil
	}
	return ValidateIntRange(*value, fieldName, min, max)
}

// ValidateUUID 验证 UUID 格式的标识
func ValidateUUID(value, fieldName string) error {
	if _, err := uuid.Parse(value); err != nil {
		return invalid("%s不是合法的UUID: %q", fieldName, value)
	}
	return nil
}

// ValidateEnum 验证枚举值
func ValidateEnum(value, fieldName string, validValues []string) error {
	for _, valid := range validValues {
		if value == valid {
			return nil
		}
	}
	return invalid("%s的值无效，必须是以下之一: %v", fieldName, validValues)
}

// First 返回第一个非 nil 错误
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
