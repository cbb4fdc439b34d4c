package errors

import (
	"context"
	"errors"
	"strings"
	"testing"

	repository "github.com/menu-planning/backend-sub003/domain/repository"
)

// TestWrap 测试基本错误包装
func TestWrap(t *testing.T) {
	ctx := context.Background()
	originalErr := errors.New("原始错误")

	wrapped := Wrap(ctx, originalErr, ErrCodeConfig, "包装消息")
	if wrapped == nil {
		t.Fatal("包装后的错误为nil")
	}
	if !errors.Is(wrapped, originalErr) {
		t.Error("包装后的错误应保留原始错误链")
	}
	if GetErrorCode(wrapped) != ErrCodeConfig {
		t.Errorf("错误码 = %s, 期望 %s", GetErrorCode(wrapped), ErrCodeConfig)
	}
}

// TestWrap_NilError 测试包装nil错误
func TestWrap_NilError(t *testing.T) {
	if Wrap(context.Background(), nil, ErrCodeInternal, "消息") != nil {
		t.Error("包装nil错误应该返回nil")
	}
}

// TestNewFilterValidationError 测试过滤验证错误的详情
func TestNewFilterValidationError(t *testing.T) {
	err := NewFilterValidationError("未知的过滤键", "zeta", "alpha", "zeta")

	if !IsValidation(err) {
		t.Fatal("期望错误码为VALIDATION_ERROR")
	}
	keys, ok := err.Details()["keys"].([]string)
	if !ok {
		t.Fatalf("details[keys] 类型错误: %T", err.Details()["keys"])
	}
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "zeta" {
		t.Errorf("keys = %v, 期望 [alpha zeta]", keys)
	}
	if !strings.Contains(err.Error(), "未知的过滤键") {
		t.Errorf("错误消息不包含原因: %s", err.Error())
	}
}

// TestErrorCodeHelpers 测试错误码判断辅助函数
func TestErrorCodeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"未找到", NewNotFoundError("meals", "m1"), IsNotFound},
		{"多条匹配", NewMultipleFoundError("meals", "m1"), IsMultipleFound},
		{"使用错误", NewUsageError("select() 重复调用"), IsUsage},
		{"验证错误", NewFilterValidationError("空集合"), IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("判断函数未识别错误: %v", tt.err)
			}
			if IsErrorCode(tt.err, ErrCodeInternal) {
				t.Error("不应被识别为内部错误")
			}
		})
	}
}

// TestAppError_IsByCode 测试 errors.Is 按错误码比较
func TestAppError_IsByCode(t *testing.T) {
	err := NewUsageError("persist 未跟踪实体")
	if !errors.Is(err, ErrUsage) {
		t.Error("errors.Is 应按错误码匹配哨兵错误")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("不同错误码不应匹配")
	}

	wrapped := err.Wrap("仓储层")
	if !errors.Is(wrapped, ErrUsage) {
		t.Error("Wrap 后应保留错误码")
	}
}

// TestWithContext 测试上下文详情不修改原错误
func TestWithContext(t *testing.T) {
	base := NewError(ErrCodeValidation, "失败")
	withCtx := base.WithContext("key", "limit")

	if _, ok := base.Details()["key"]; ok {
		t.Error("WithContext 不应修改原错误")
	}
	if withCtx.Details()["key"] != "limit" {
		t.Errorf("details[key] = %v, 期望 limit", withCtx.Details()["key"])
	}
}

// TestGetErrorCode_PlainError 测试普通错误的错误码
func TestGetErrorCode_PlainError(t *testing.T) {
	if GetErrorCode(nil) != "" {
		t.Error("nil 错误应返回空错误码")
	}
	if GetErrorCode(errors.New("驱动错误")) != ErrCodeInternal {
		t.Error("普通错误应归为内部错误")
	}
}

// TestNotFound_MatchesRepositorySentinel 测试未找到错误保留仓储哨兵错误
func TestNotFound_MatchesRepositorySentinel(t *testing.T) {
	if !errors.Is(NewNotFoundError("meals", "m1"), repository.ErrEntityNotFound) {
		t.Error("未找到错误应匹配 repository.ErrEntityNotFound")
	}
	if !errors.Is(NewMultipleFoundError("meals", "m1"), repository.ErrMultipleEntities) {
		t.Error("多条匹配错误应匹配 repository.ErrMultipleEntities")
	}
}
