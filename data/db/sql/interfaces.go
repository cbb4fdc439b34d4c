// Package sql 提供基于 ? 占位符的轻量 SQL 构建器
//
// 构建器只负责拼接语句与参数，占位符到方言形式（如 postgres 的 $n）的转换
// 由 IDatabase 实现在执行时完成。标识符在拼接前做安全校验，非法标识符视为编程错误直接 panic。
package sql

import (
	"context"
	"database/sql"

	core "github.com/menu-planning/backend-sub003/data/db"
	"github.com/menu-planning/backend-sub003/data/db/dialect"
)

// ISql 提供统一的 SQL 构建与执行接口。
type ISql interface {
	Select(columns ...string) ISelectBuilder
	UpsertInto(table string) IUpsertBuilder

	// Dialect 返回根据底层连接推断出的方言
	Dialect() dialect.Dialect
}

// ISelectBuilder 构建 SELECT 语句。
type ISelectBuilder interface {
	Columns(cols ...string) ISelectBuilder
	From(table string) ISelectBuilder
	Distinct() ISelectBuilder
	Join(kind JoinKind, table string, on string, args ...any) ISelectBuilder
	Where(cond string, args ...any) ISelectBuilder
	And(cond string, args ...any) ISelectBuilder
	Or(cond string, args ...any) ISelectBuilder
	GroupBy(cols ...string) ISelectBuilder
	// OrderBy 追加一个排序项；多次调用按调用顺序组合
	OrderBy(expr string) ISelectBuilder
	Limit(n int) ISelectBuilder
	Offset(n int) ISelectBuilder
	Clone() ISelectBuilder
	Build() (query string, args []any)
	Query(ctx context.Context) (core.IRows, error)
	QueryRow(ctx context.Context) core.IRow
}

// IUpsertBuilder 构建 UPSERT 语句。
//
// 写入只有按主键覆盖这一种形态：行不存在时插入，存在时更新非键列。
type IUpsertBuilder interface {
	// Row 整体替换待写入的行
	Row(row Row) IUpsertBuilder
	// Set 在行尾追加一列
	Set(column string, val any) IUpsertBuilder
	Key(cols ...string) IUpsertBuilder
	// Build 渲染原生 upsert；方言无原生语法时返回普通 INSERT
	Build() (query string, args []any)
	Exec(ctx context.Context) (sql.Result, error)
}

type sqlImpl struct {
	db      core.IDatabase
	dialect dialect.Dialect
}

// New 创建 ISql 实例。
func New(db core.IDatabase) ISql {
	return &sqlImpl{
		db:      db,
		dialect: dialect.FromDatabase(db),
	}
}

func (s *sqlImpl) Select(columns ...string) ISelectBuilder {
	b := NewSelect(columns...)
	b.db = s.db
	return b
}

func (s *sqlImpl) UpsertInto(table string) IUpsertBuilder {
	return &upsertBuilder{
		db:      s.db,
		dialect: s.dialect,
		table:   table,
	}
}

func (s *sqlImpl) Dialect() dialect.Dialect {
	return s.dialect
}
