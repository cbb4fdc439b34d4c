package sql

import (
	"context"
	"fmt"
	"strings"

	core "github.com/menu-planning/backend-sub003/data/db"
)

// JoinKind 连接类型
type JoinKind string

const (
	InnerJoin JoinKind = "JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
)

type joinClause struct {
	kind  JoinKind
	table string
	on    string
	args  []any
}

// SelectBuilder SELECT 语句构建器
//
// 可脱离数据库单独使用（NewSelect），仅用于渲染语句；
// 通过 ISql.Select 创建时可直接执行。
type SelectBuilder struct {
	db core.IDatabase

	cols     []string
	distinct bool
	table    string
	joins    []joinClause
	where    []string
	args     []any
	groupBy  []string
	orderBy  []string
	limit    int
	offset   int
}

// NewSelect 创建不绑定数据库的 SELECT 构建器
func NewSelect(columns ...string) *SelectBuilder {
	b := &SelectBuilder{}
	b.Columns(columns...)
	return b
}

func (b *SelectBuilder) Columns(cols ...string) ISelectBuilder {
	if len(cols) == 0 {
		b.cols = []string{"*"}
		return b
	}
	safe := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != "*" && !isSafeIdentifier(c) {
			panic("SelectBuilder: unsafe column name " + c)
		}
		safe = append(safe, c)
	}
	b.cols = safe
	return b
}

func (b *SelectBuilder) From(table string) ISelectBuilder {
	if !isSafeIdentifier(table) {
		panic("SelectBuilder: unsafe table name " + table)
	}
	b.table = table
	return b
}

func (b *SelectBuilder) Distinct() ISelectBuilder {
	b.distinct = true
	return b
}

// Join 追加连接子句；on 为完整的连接条件，由调用方保证其中标识符合法
func (b *SelectBuilder) Join(kind JoinKind, table string, on string, args ...any) ISelectBuilder {
	if !isSafeIdentifier(table) {
		panic("SelectBuilder: unsafe join table " + table)
	}
	if kind != InnerJoin && kind != LeftJoin {
		panic(fmt.Sprintf("SelectBuilder: unsupported join kind %q", kind))
	}
	b.joins = append(b.joins, joinClause{kind: kind, table: table, on: on, args: args})
	return b
}

func (b *SelectBuilder) Where(cond string, args ...any) ISelectBuilder {
	if cond != "" {
		b.where = append(b.where, cond)
		b.args = append(b.args, args...)
	}
	return b
}

func (b *SelectBuilder) And(cond string, args ...any) ISelectBuilder {
	return b.Where(cond, args...)
}

func (b *SelectBuilder) Or(cond string, args ...any) ISelectBuilder {
	if cond == "" {
		return b
	}
	if len(b.where) == 0 {
		return b.Where(cond, args...)
	}
	last := b.where[len(b.where)-1]
	b.where[len(b.where)-1] = "(" + last + " OR " + cond + ")"
	b.args = append(b.args, args...)
	return b
}

func (b *SelectBuilder) GroupBy(cols ...string) ISelectBuilder {
	if len(cols) > 0 {
		b.groupBy = append(b.groupBy, cols...)
	}
	return b
}

func (b *SelectBuilder) OrderBy(expr string) ISelectBuilder {
	if expr != "" {
		b.orderBy = append(b.orderBy, expr)
	}
	return b
}

// Limit 设置结果集最大行数。
//
// 约定：
//   - n > 0：生成 `LIMIT ?` 子句；
//   - n == 0：不生成 LIMIT 子句（等价于“不限制”）；
//   - n < 0：视为编程错误，直接 panic 以便尽早暴露问题。
func (b *SelectBuilder) Limit(n int) ISelectBuilder {
	if n < 0 {
		panic("SelectBuilder: limit cannot be negative")
	}
	b.limit = n
	return b
}

// Offset 设置结果集偏移量，n < 0 时 panic。
func (b *SelectBuilder) Offset(n int) ISelectBuilder {
	if n < 0 {
		panic("SelectBuilder: offset cannot be negative")
	}
	b.offset = n
	return b
}

// Clone 返回独立副本，之后对任一方的修改互不影响
func (b *SelectBuilder) Clone() ISelectBuilder {
	return b.clone()
}

func (b *SelectBuilder) clone() *SelectBuilder {
	c := *b
	c.cols = append([]string(nil), b.cols...)
	c.joins = append([]joinClause(nil), b.joins...)
	c.where = append([]string(nil), b.where...)
	c.args = append([]any(nil), b.args...)
	c.groupBy = append([]string(nil), b.groupBy...)
	c.orderBy = append([]string(nil), b.orderBy...)
	return &c
}

func (b *SelectBuilder) Build() (string, []any) {
	if b.table == "" {
		panic("SelectBuilder: From is required")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(strings.Join(b.cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	// 使用局部 args 副本，避免在多次 Build 调用之间污染 builder 状态。
	args := make([]any, 0, len(b.args)+2)
	for _, j := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(string(j.kind))
		sb.WriteString(" ")
		sb.WriteString(j.table)
		sb.WriteString(" ON ")
		sb.WriteString(j.on)
		args = append(args, j.args...)
	}
	args = append(args, b.args...)

	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}
	if b.offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, b.offset)
	}
	return sb.String(), args
}

func (b *SelectBuilder) Query(ctx context.Context) (core.IRows, error) {
	if b.db == nil {
		return nil, fmt.Errorf("SelectBuilder: no database bound, use ISql.Select")
	}
	q, args := b.Build()
	return b.db.Query(ctx, q, args...)
}

func (b *SelectBuilder) QueryRow(ctx context.Context) core.IRow {
	q, args := b.Build()
	return b.db.QueryRow(ctx, q, args...)
}
