// Package orm 定义表描述符、会话与数据映射器契约
//
// 仓储与查询构建器只依赖这里的接口；会话实现见 orm/basic。
package orm

import (
	"context"

	"github.com/menu-planning/backend-sub003/data/db/dialect"
)

// Record 一行存储记录，键为列名
type Record = map[string]any

// ISession 工作单元会话
//
// Merge 只暂存写入，Flush 按暂存顺序执行；Query 执行前会自动 Flush。
// Upsert 是单条记录的原子写入，并发调用方之间不会互相执行或丢弃对方的记录。
// 实现必须允许多个 goroutine 并发调用。
type ISession interface {
	// ID 会话标识，用于日志关联
	ID() string
	Dialect() dialect.Dialect
	Query(ctx context.Context, query string, args ...any) ([]Record, error)
	// Merge 暂存一条按主键 upsert 的记录
	Merge(ctx context.Context, table *TableMeta, rec Record) error
	Flush(ctx context.Context) error
	// Upsert 先写出已暂存的记录，再立即写入 rec
	Upsert(ctx context.Context, table *TableMeta, rec Record) error
}

// IDataMapper 领域对象与存储记录之间的双向映射
//
// ToRecord 可以通过 sess 查询关联数据（例如复用已有的标签行）。
type IDataMapper[E any] interface {
	ToRecord(ctx context.Context, sess ISession, e E) (Record, error)
	ToDomain(rec Record) (E, error)
}
