package query

import (
	"fmt"

	"github.com/menu-planning/backend-sub003/errors"
)

// DefaultLimit 调用方未提供 limit 时使用的分页上限
const DefaultLimit = 500

// Policy 查询策略，同时注入 Engine 与 Builder，保证两条路径的分页规则一致
type Policy struct {
	// DefaultLimit 未指定 limit 时的默认值
	DefaultLimit int `mapstructure:"default_limit"`
	// MaxLimit 允许的最大 limit，0 表示不设上限
	MaxLimit int `mapstructure:"max_limit"`
	// AllowAmbiguousKeys 兼容模式：同一过滤键出现在多个映射器中时先注册者生效
	AllowAmbiguousKeys bool `mapstructure:"allow_ambiguous_keys"`
	// LenientSort 兼容模式：无法解析的排序键被静默忽略
	LenientSort bool `mapstructure:"lenient_sort"`
	// PersistConcurrency PersistAll 的最大并发数，0 表示不限制
	PersistConcurrency int `mapstructure:"persist_concurrency"`
}

// DefaultPolicy 返回默认策略
func DefaultPolicy() Policy {
	return Policy{DefaultLimit: DefaultLimit}
}

// Validate 校验策略自身
func (p Policy) Validate() error {
	if p.DefaultLimit <= 0 {
		return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("default_limit 必须为正数, 实际 %d", p.DefaultLimit))
	}
	if p.MaxLimit < 0 {
		return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("max_limit 不能为负数, 实际 %d", p.MaxLimit))
	}
	if p.MaxLimit > 0 && p.DefaultLimit > p.MaxLimit {
		return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("default_limit %d 超过 max_limit %d", p.DefaultLimit, p.MaxLimit))
	}
	if p.PersistConcurrency < 0 {
		return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("persist_concurrency 不能为负数, 实际 %d", p.PersistConcurrency))
	}
	return nil
}

func (p Policy) withDefaults() Policy {
	if p.DefaultLimit <= 0 {
		p.DefaultLimit = DefaultLimit
	}
	return p
}

// checkLimit 返回违规原因，合法时返回空串
func (p Policy) checkLimit(limit int) string {
	if limit <= 0 {
		return fmt.Sprintf("limit 必须为正数, 实际 %d", limit)
	}
	if p.MaxLimit > 0 && limit > p.MaxLimit {
		return fmt.Sprintf("limit %d 超过上限 %d", limit, p.MaxLimit)
	}
	return ""
}

func (p Policy) checkOffset(offset int) string {
	if offset < 0 {
		return fmt.Sprintf("offset 不能为负数, 实际 %d", offset)
	}
	return ""
}
