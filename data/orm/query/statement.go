package query

import (
	"github.com/menu-planning/backend-sub003/data/db/dialect"
	dbsql "github.com/menu-planning/backend-sub003/data/db/sql"
	"github.com/menu-planning/backend-sub003/data/orm"
)

// Statement 累积中的 SELECT 语句
//
// 每个操作都保留之前的子句；Engine 与 Builder 在起始语句的副本上工作，
// 调用方传入的起始语句不会被修改。
type Statement struct {
	base     *orm.TableMeta
	sel      *dbsql.SelectBuilder
	cols     []string
	orders   []orderItem
	joined   JoinedSet
	distinct bool
	limit    int
	offset   int
}

// orderItem 一个排序项的两种渲染：直接排序，以及分组后按聚合值排序
type orderItem struct {
	plain   string
	grouped string
	joined  bool
}

// NewStatement 创建选择 base 全部列的语句
func NewStatement(base *orm.TableMeta) *Statement {
	return newStatement(base, base.SelectList()...)
}

func newStatement(base *orm.TableMeta, cols ...string) *Statement {
	sel := dbsql.NewSelect(cols...)
	sel.From(base.Name())
	joined := JoinedSet{}
	joined.Add(base.ID())
	return &Statement{base: base, sel: sel, cols: cols, joined: joined}
}

func (s *Statement) columns(cols ...string) {
	s.sel.Columns(cols...)
	s.cols = cols
}

// Where 追加原始条件（AND 组合），条件中的标识符由调用方保证合法
func (s *Statement) Where(cond string, args ...any) *Statement {
	s.sel.Where(cond, args...)
	return s
}

// JoinTable 追加一个连接并记录到已连接集合；目标表已连接时跳过
func (s *Statement) JoinTable(table *orm.TableMeta, kind dbsql.JoinKind, on ...JoinOn) *Statement {
	if s.joined.Has(table.ID()) {
		return s
	}
	s.sel.Join(kind, table.Name(), renderOn(on))
	s.joined.Add(table.ID())
	return s
}

func (s *Statement) joinPath(path []Hop) {
	for _, h := range path {
		s.JoinTable(h.Table, h.Kind, h.On...)
	}
}

func (s *Statement) apply(p Predicate) {
	cond, args := p.SQL()
	s.sel.Where(cond, args...)
}

// orderBy 追加 NULL 排在最后的排序项。
// 非基表列在 DISTINCT 下改为按分组聚合值排序：降序取 MAX，升序取 MIN。
func (s *Statement) orderBy(d dialect.Dialect, col orm.Column, desc bool) {
	item := orderItem{plain: d.OrderNullsLast(col.Qualified(), desc)}
	item.grouped = item.plain
	if col.Table != s.base.ID() {
		agg := "MIN"
		if desc {
			agg = "MAX"
		}
		item.joined = true
		item.grouped = d.OrderNullsLast(agg+"("+col.Qualified()+")", desc)
	}
	s.orders = append(s.orders, item)
}

// SetDistinct 开启 DISTINCT，一旦开启不会关闭
func (s *Statement) SetDistinct() *Statement {
	s.distinct = true
	return s
}

// Page 设置分页，参数由调用方按 Policy 校验
func (s *Statement) Page(limit, offset int) *Statement {
	s.limit = limit
	s.offset = offset
	return s
}

func (s *Statement) Base() *orm.TableMeta { return s.base }
func (s *Statement) Distinct() bool       { return s.distinct }
func (s *Statement) Limit() int           { return s.limit }
func (s *Statement) Offset() int          { return s.offset }

// Joined 返回已连接表集合的副本（包含基表）
func (s *Statement) Joined() JoinedSet { return s.joined.Clone() }

// JoinCount 返回基表之外已连接的表数量
func (s *Statement) JoinCount() int { return len(s.joined) - 1 }

// Clone 返回独立副本
func (s *Statement) Clone() *Statement {
	return &Statement{
		base:     s.base,
		sel:      s.sel.Clone().(*dbsql.SelectBuilder),
		cols:     append([]string(nil), s.cols...),
		orders:   append([]orderItem(nil), s.orders...),
		joined:   s.joined.Clone(),
		distinct: s.distinct,
		limit:    s.limit,
		offset:   s.offset,
	}
}

// Build 渲染 SQL 与参数，占位符为 ?
//
// DISTINCT 与关联表上的排序同时出现时，改为按选择列 GROUP BY 去重，
// 排序使用聚合值，否则 postgres 会拒绝不在选择列中的 ORDER BY 表达式。
func (s *Statement) Build() (string, []any) {
	sel := s.sel.Clone()
	grouped := s.groupedSort()
	switch {
	case grouped:
		sel.GroupBy(s.cols...)
	case s.distinct:
		sel.Distinct()
	}
	for _, o := range s.orders {
		if grouped {
			sel.OrderBy(o.grouped)
		} else {
			sel.OrderBy(o.plain)
		}
	}
	if s.limit > 0 {
		sel.Limit(s.limit)
	}
	if s.offset > 0 {
		sel.Offset(s.offset)
	}
	return sel.Build()
}

func (s *Statement) groupedSort() bool {
	if !s.distinct || len(s.cols) == 0 {
		return false
	}
	for _, c := range s.cols {
		if c == "*" {
			return false
		}
	}
	for _, o := range s.orders {
		if o.joined {
			return true
		}
	}
	return false
}

// String 返回 SQL 文本，便于日志与调试
func (s *Statement) String() string {
	q, _ := s.Build()
	return q
}
