package repo

import (
	"github.com/menu-planning/backend-sub003/data/orm"
	"github.com/menu-planning/backend-sub003/data/orm/query"
	"github.com/menu-planning/backend-sub003/domain/repository"
)

// WithStartingStatement 在 stmt 的副本上编译过滤条件，stmt 本身不会被修改
func WithStartingStatement(stmt *query.Statement) repository.QueryOption {
	return repository.WithExtension(query.WithStartingStatement(stmt))
}

// WithAlreadyJoined 声明起始语句里已经连接过的表，编译时不再重复连接
func WithAlreadyJoined(tables ...orm.TableID) repository.QueryOption {
	return repository.WithExtension(query.WithAlreadyJoined(tables...))
}

// WithBaseTable 以注册表中的另一张表为基表查询。
// 结果不是本仓储的实体，只能配合 QueryRaw 使用。
func WithBaseTable(table *orm.TableMeta) repository.QueryOption {
	return repository.WithExtension(query.WithBaseTable(table))
}
