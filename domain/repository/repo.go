package repository

import (
	"context"

	"github.com/menu-planning/backend-sub003/domain/entity"
)

// IRepository 限界上下文使用的通用仓储接口
//
// 仓储绑定一个工作单元（会话）。Query/Get 返回的实体会被跟踪，
// 只有被跟踪的实体引用才能被 Persist。
type IRepository[T entity.IObject[ID], ID comparable] interface {
	// Query 按扁平过滤条件查询实体
	Query(ctx context.Context, filters map[string]any, opts ...QueryOption) ([]T, error)

	// QueryRaw 按扁平过滤条件查询原始记录（不映射、不跟踪）
	QueryRaw(ctx context.Context, filters map[string]any, opts ...QueryOption) ([]map[string]any, error)

	// Get 通过 ID 获取实体
	Get(ctx context.Context, id ID, opts ...QueryOption) (T, error)

	// GetRaw 通过 ID 获取原始记录
	GetRaw(ctx context.Context, id ID, opts ...QueryOption) (map[string]any, error)

	// Add 添加新实体
	Add(ctx context.Context, e T) error

	// Persist 持久化一个已跟踪的实体
	Persist(ctx context.Context, e T) error

	// PersistAll 并发持久化所有已跟踪的实体
	PersistAll(ctx context.Context) error
}
