package errors

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	repository "github.com/menu-planning/backend-sub003/domain/repository"
	"github.com/menu-planning/backend-sub003/logging"
)

// Wrap 包装错误，添加错误码和上下文信息
// 建议：在仓储/服务层边界使用，添加业务上下文
func Wrap(ctx context.Context, err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}

	_, file, line, _ := runtime.Caller(1)

	wrapped := WrapError(err, code, msg)

	// 避免重复记录，使用 Debug 级别
	logging.GetLogger().Debug(ctx, fmt.Sprintf("错误包装: %s (位置: %s:%d)", msg, file, line))

	return wrapped
}

// NewFilterValidationError 创建过滤条件验证错误。
//
// keys 为触发错误的过滤键（去重并排序后写入 details["keys"]），
// reason 为人类可读的原因，同时写入 details["reason"]。
func NewFilterValidationError(reason string, keys ...string) IError {
	uniq := make(map[string]struct{}, len(keys))
	sorted := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := uniq[k]; ok {
			continue
		}
		uniq[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	msg := reason
	if len(sorted) > 0 {
		msg = fmt.Sprintf("%s: %v", reason, sorted)
	}
	return NewError(ErrCodeValidation, msg).WithDetails(map[string]any{
		"keys":   sorted,
		"reason": reason,
	})
}

// NewUsageError 创建 API 误用错误（断言类错误，属于编程错误而非用户输入错误）
func NewUsageError(format string, args ...any) IError {
	return NewError(ErrCodeUsage, fmt.Sprintf(format, args...))
}

// NewNotFoundError 创建实体未找到错误
func NewNotFoundError(table string, id any) IError {
	return NewErrorWithCause(ErrCodeNotFound, fmt.Sprintf("%s: 未找到 id=%v", table, id), repository.ErrEntityNotFound).
		WithDetails(map[string]any{"table": table, "id": id})
}

// NewMultipleFoundError 创建多条匹配错误（唯一标识对应多行，通常意味着上游数据完整性问题）
func NewMultipleFoundError(table string, id any) IError {
	return NewErrorWithCause(ErrCodeMultipleFound, fmt.Sprintf("%s: id=%v 匹配到多行", table, id), repository.ErrMultipleEntities).
		WithDetails(map[string]any{"table": table, "id": id})
}
