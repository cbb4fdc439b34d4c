package query

import (
	"context"
	"strings"

	dbsql "github.com/menu-planning/backend-sub003/data/db/sql"
	"github.com/menu-planning/backend-sub003/data/orm"
	"github.com/menu-planning/backend-sub003/errors"
)

type builderState int

const (
	stateUninitialized builderState = iota
	stateBuilding
	stateBuilt
)

// Result Execute 的结果；ReturnRaw 时 Rows 有值，设置映射器时 Entities 有值
type Result[E any] struct {
	Entities []E
	Rows     []orm.Record
}

// Builder 不依赖仓储的链式查询构建器
//
// 状态：未初始化 -> Select -> 构建中 -> Build -> 已构建。
// 误用（重复 Select、Select 前调用其他方法、Build 后继续修改、非法分页）
// 记录为 UsageError，首个错误生效，之后的调用均为空操作，
// 错误通过 Err、Build、Execute 返回。
type Builder[E any] struct {
	sess     orm.ISession
	base     *orm.TableMeta
	starting *Statement
	policy   Policy

	state    builderState
	stmt     *Statement
	limit    int
	offset   int
	distinct bool
	mapper   orm.IDataMapper[E]
	raw      bool
	err      error
}

// NewBuilder 创建构建器；starting 非空时在其副本上继续构建
func NewBuilder[E any](sess orm.ISession, base *orm.TableMeta, starting ...*Statement) *Builder[E] {
	b := &Builder[E]{sess: sess, base: base, policy: DefaultPolicy()}
	if len(starting) > 0 && starting[0] != nil {
		b.starting = starting[0]
		if starting[0].Base().ID() != base.ID() {
			b.fail("起始语句的基表 %s 与 %s 不一致", starting[0].Base().ID(), base.ID())
		}
	}
	return b
}

// UsePolicy 替换分页策略，需在 Build 之前调用
func (b *Builder[E]) UsePolicy(p Policy) *Builder[E] {
	if b.guard("UsePolicy", false) {
		b.policy = p.withDefaults()
	}
	return b
}

func (b *Builder[E]) fail(format string, args ...any) {
	if b.err == nil {
		b.err = errors.NewUsageError("query builder: "+format, args...)
	}
}

// guard 检查调用时机，needSelect 表示该方法要求已经 Select
func (b *Builder[E]) guard(verb string, needSelect bool) bool {
	if b.err != nil {
		return false
	}
	switch {
	case b.state == stateBuilt:
		b.fail("%s 在 Build 之后调用", verb)
		return false
	case needSelect && b.state == stateUninitialized:
		b.fail("%s 在 Select 之前调用", verb)
		return false
	}
	return true
}

// Err 返回首个使用错误
func (b *Builder[E]) Err() error { return b.err }

// Select 指定返回列，为空时返回基表全部列；只能调用一次
func (b *Builder[E]) Select(columns ...string) *Builder[E] {
	if !b.guard("Select", false) {
		return b
	}
	if b.state != stateUninitialized {
		b.fail("Select 重复调用")
		return b
	}

	cols := b.base.SelectList()
	if len(columns) > 0 {
		cols = make([]string, len(columns))
		for i, c := range columns {
			if !strings.Contains(c, ".") {
				col, ok := b.base.Column(c)
				if !ok {
					b.fail("表 %s 没有列 %s", b.base.Name(), c)
					return b
				}
				c = col.Qualified()
			}
			if !dbsql.IsSafeIdentifier(c) {
				b.fail("非法列名 %q", c)
				return b
			}
			cols[i] = c
		}
	}

	if b.starting != nil {
		b.stmt = b.starting.Clone()
		b.stmt.columns(cols...)
	} else {
		b.stmt = newStatement(b.base, cols...)
	}
	b.state = stateBuilding
	return b
}

// Where 追加条件；Equals 配合 nil 渲染为 IS NULL
func (b *Builder[E]) Where(op Operator, col orm.Column, value any) *Builder[E] {
	if !b.guard("Where", true) {
		return b
	}
	if op == NotExists {
		b.fail("Where 不支持 %s", op)
		return b
	}
	if !b.stmt.joined.Has(col.Table) {
		b.fail("列 %s 所在的表尚未连接", col.Qualified())
		return b
	}
	pred, reason := resolvePredicate(col, op, value)
	if reason != "" {
		b.fail("%s: %s", col.Qualified(), reason)
		return b
	}
	b.stmt.apply(pred)
	return b
}

// Join 连接目标表；同一张表重复连接时跳过
func (b *Builder[E]) Join(target *orm.TableMeta, kind dbsql.JoinKind, on ...JoinOn) *Builder[E] {
	if !b.guard("Join", true) {
		return b
	}
	if target == nil || len(on) == 0 {
		b.fail("Join 需要目标表与连接条件")
		return b
	}
	if kind != Inner && kind != Left {
		b.fail("不支持的连接类型 %q", kind)
		return b
	}
	b.stmt.JoinTable(target, kind, on...)
	return b
}

// OrderBy 追加排序项，NULL 总是排在最后
func (b *Builder[E]) OrderBy(col orm.Column, desc bool) *Builder[E] {
	if !b.guard("OrderBy", true) {
		return b
	}
	if !b.stmt.joined.Has(col.Table) {
		b.fail("排序列 %s 所在的表尚未连接", col.Qualified())
		return b
	}
	b.stmt.orderBy(b.sess.Dialect(), col, desc)
	return b
}

func (b *Builder[E]) Limit(n int) *Builder[E] {
	if !b.guard("Limit", true) {
		return b
	}
	if reason := b.policy.checkLimit(n); reason != "" {
		b.fail("%s", reason)
		return b
	}
	b.limit = n
	return b
}

func (b *Builder[E]) Offset(n int) *Builder[E] {
	if !b.guard("Offset", true) {
		return b
	}
	if reason := b.policy.checkOffset(n); reason != "" {
		b.fail("%s", reason)
		return b
	}
	b.offset = n
	return b
}

func (b *Builder[E]) Distinct() *Builder[E] {
	if b.guard("Distinct", true) {
		b.distinct = true
	}
	return b
}

// WithMapper 设置结果映射器，Execute 将返回领域对象
func (b *Builder[E]) WithMapper(m orm.IDataMapper[E]) *Builder[E] {
	if b.guard("WithMapper", false) {
		b.mapper = m
	}
	return b
}

// ReturnRaw Execute 返回原始记录
func (b *Builder[E]) ReturnRaw() *Builder[E] {
	if b.guard("ReturnRaw", false) {
		b.raw = true
	}
	return b
}

// Build 冻结构建器并返回语句
func (b *Builder[E]) Build() (*Statement, error) {
	if b.guard("Build", true) {
		limit := b.limit
		if limit == 0 {
			limit = b.policy.DefaultLimit
		}
		if b.distinct {
			b.stmt.SetDistinct()
		}
		b.stmt.Page(limit, b.offset)
		b.state = stateBuilt
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.stmt, nil
}

// Execute 在会话上执行查询；尚未 Build 时先 Build
func (b *Builder[E]) Execute(ctx context.Context) (Result[E], error) {
	var res Result[E]
	if b.err == nil && b.mapper == nil && !b.raw {
		b.fail("Execute 需要先调用 WithMapper 或 ReturnRaw")
	}
	if b.err == nil && b.state != stateBuilt {
		if _, err := b.Build(); err != nil {
			return res, err
		}
	}
	if b.err != nil {
		return res, b.err
	}

	q, args := b.stmt.Build()
	rows, err := b.sess.Query(ctx, q, args...)
	if err != nil {
		return res, err
	}
	if b.raw {
		res.Rows = rows
	}
	if b.mapper != nil {
		res.Entities = make([]E, 0, len(rows))
		for _, rec := range rows {
			e, err := b.mapper.ToDomain(rec)
			if err != nil {
				return Result[E]{}, err
			}
			res.Entities = append(res.Entities, e)
		}
	}
	return res, nil
}
