package query

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/menu-planning/backend-sub003/data/db/dialect"
	"github.com/menu-planning/backend-sub003/data/orm"
	"github.com/menu-planning/backend-sub003/errors"
)

type compileOptions struct {
	start         *Statement
	sort          string
	limit         int
	alreadyJoined []orm.TableID
	base          *orm.TableMeta
	distinct      bool
}

// CompileOption 编译选项
type CompileOption func(*compileOptions)

// WithStartingStatement 在给定语句的副本上继续构建
func WithStartingStatement(stmt *Statement) CompileOption {
	return func(o *compileOptions) { o.start = stmt }
}

// WithSort 排序指令，过滤条件中的 sort 键优先
func WithSort(directive string) CompileOption {
	return func(o *compileOptions) { o.sort = directive }
}

// WithLimit 默认分页大小，过滤条件中的 limit 键优先；0 表示使用策略默认值
func WithLimit(limit int) CompileOption {
	return func(o *compileOptions) { o.limit = limit }
}

// WithAlreadyJoined 声明起始语句中已经连接过的表
func WithAlreadyJoined(tables ...orm.TableID) CompileOption {
	return func(o *compileOptions) { o.alreadyJoined = append(o.alreadyJoined, tables...) }
}

// WithBaseTable 以另一张已注册的表作为查询基表，只允许该表上的过滤键
func WithBaseTable(table *orm.TableMeta) CompileOption {
	return func(o *compileOptions) { o.base = table }
}

// WithDistinct 强制 DISTINCT
func WithDistinct() CompileOption {
	return func(o *compileOptions) { o.distinct = true }
}

// Engine 把扁平过滤条件编译为参数化语句
type Engine struct {
	reg *Registry
}

// NewEngine 创建编译引擎
func NewEngine(reg *Registry) *Engine {
	return &Engine{reg: reg}
}

func (e *Engine) Registry() *Registry { return e.reg }

// planned 校验通过、等待应用的过滤条件
type planned struct {
	key       string
	pred      Predicate
	notExists bool
	path      []Hop
}

// Compile 校验并编译过滤条件。
//
// 全部键在构建语句之前一次性校验，任一违规都返回列出全部违规键的
// FilterValidationError，此时不会产生任何语句。
func (e *Engine) Compile(d dialect.Dialect, filters map[string]any, opts ...CompileOption) (*Statement, error) {
	var o compileOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	base := e.reg.base
	switch {
	case o.base != nil && o.start != nil && o.base.ID() != o.start.Base().ID():
		return nil, errors.NewUsageError("compile: 基表 %s 与起始语句的基表 %s 不一致", o.base.ID(), o.start.Base().ID())
	case o.base != nil:
		base = o.base
	case o.start != nil:
		base = o.start.Base()
	}
	if base.ID() != e.reg.base.ID() {
		if _, ok := e.reg.paths.Path(base.ID()); !ok {
			return nil, errors.NewUsageError("compile: 表 %s 未在注册表中登记", base.ID())
		}
	}

	v := newViolations()
	plans := make(map[string]planned, len(filters))
	distinct := o.distinct

	for key, value := range filters {
		if isReserved(key) {
			continue
		}
		bk, op, ok := e.reg.resolve(key)
		if !ok {
			v.add(key, "未知的过滤键")
			continue
		}
		col := bk.column
		if col.Table != base.ID() && base.ID() != e.reg.base.ID() {
			v.add(key, fmt.Sprintf("过滤键不属于基表 %s", base.ID()))
			continue
		}

		if op == NotExists {
			if col.Table == base.ID() {
				v.add(key, "_not_exists 只能用于关联表上的键")
				continue
			}
			var pred Predicate
			if value != nil {
				p, reason := resolvePredicate(col, "", value)
				if reason != "" {
					v.add(key, reason)
					continue
				}
				pred = p
			}
			path, _ := e.reg.paths.Path(col.Table)
			plans[key] = planned{key: key, pred: pred, notExists: true, path: path}
			distinct = distinct || isCollection(value)
			continue
		}

		pred, reason := resolvePredicate(col, op, value)
		if reason != "" {
			v.add(key, reason)
			continue
		}
		var path []Hop
		if col.Table != base.ID() {
			path, _ = e.reg.paths.Path(col.Table)
		}
		plans[key] = planned{key: key, pred: pred, path: path}
		distinct = distinct || isCollection(value)
	}

	offset := 0
	if raw, ok := filters[KeySkip]; ok && raw != nil {
		n, err := toInt(raw)
		if err != nil {
			v.add(KeySkip, err.Error())
		} else if reason := e.reg.policy.checkOffset(n); reason != "" {
			v.add(KeySkip, reason)
		} else {
			offset = n
		}
	}

	limit := e.reg.policy.DefaultLimit
	if o.limit != 0 {
		limit = o.limit
	}
	if raw, ok := filters[KeyLimit]; ok && raw != nil {
		n, err := toInt(raw)
		if err != nil {
			v.add(KeyLimit, err.Error())
		} else {
			limit = n
		}
	}
	if reason := e.reg.policy.checkLimit(limit); reason != "" {
		v.add(KeyLimit, reason)
	}

	directive := o.sort
	if raw, ok := filters[KeySort]; ok && raw != nil {
		s, err := cast.ToStringE(raw)
		if err != nil {
			v.add(KeySort, "sort 必须为字符串")
		} else {
			directive = s
		}
	}
	var st *sortTarget
	if directive != "" {
		if t, ok := e.reg.resolveSort(base, directive); ok {
			st = &t
		} else if !e.reg.policy.LenientSort {
			v.add(KeySort, fmt.Sprintf("无法解析的排序键 %q", directive))
		}
	}

	if err := v.err(); err != nil {
		return nil, err
	}

	var stmt *Statement
	if o.start != nil {
		stmt = o.start.Clone()
	} else {
		stmt = NewStatement(base)
	}
	for _, id := range o.alreadyJoined {
		stmt.joined.Add(id)
	}

	for _, key := range e.orderedKeys(plans) {
		p := plans[key]
		if p.notExists {
			cond, args := notExistsSQL(p.path, p.pred)
			stmt.sel.Where(cond, args...)
			continue
		}
		stmt.joinPath(p.path)
		stmt.apply(p.pred)
	}

	if st != nil {
		stmt.applySort(d, *st)
	}
	if distinct {
		stmt.SetDistinct()
	}
	stmt.Page(limit, offset)
	return stmt, nil
}

// orderedKeys 按映射器注册顺序、绑定声明顺序排列；同一绑定上的多个键按字典序
func (e *Engine) orderedKeys(plans map[string]planned) []string {
	byBinding := make(map[[2]int][]string, len(plans))
	for key := range plans {
		bk, _, _ := e.reg.resolve(key)
		slot := [2]int{bk.mapper, bk.binding}
		byBinding[slot] = append(byBinding[slot], key)
	}

	out := make([]string, 0, len(plans))
	for mi, m := range e.reg.mappers {
		for bi := range m.bindings {
			keys := byBinding[[2]int{mi, bi}]
			sort.Strings(keys)
			out = append(out, keys...)
		}
	}
	return out
}

// notExistsSQL 渲染沿连接路径的关联子查询；pred 为零值时表示不存在任何关联行
func notExistsSQL(path []Hop, pred Predicate) (string, []any) {
	var sb strings.Builder
	sb.WriteString("NOT EXISTS (SELECT 1 FROM ")
	sb.WriteString(path[0].Table.Name())
	for _, h := range path[1:] {
		sb.WriteString(" JOIN ")
		sb.WriteString(h.Table.Name())
		sb.WriteString(" ON ")
		sb.WriteString(renderOn(h.On))
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(renderOn(path[0].On))

	var args []any
	if pred.Op != "" {
		cond, a := pred.SQL()
		sb.WriteString(" AND ")
		sb.WriteString(cond)
		args = a
	}
	sb.WriteString(")")
	return sb.String(), args
}

// toInt 接受整数、整数值的浮点数与数字字符串，超出 int 范围的值被拒绝
func toInt(v any) (int, error) {
	switch f := v.(type) {
	case float32:
		return floatToInt(float64(f))
	case float64:
		return floatToInt(f)
	case uint:
		if f > math.MaxInt {
			return 0, fmt.Errorf("%v 超出范围", v)
		}
	case uint64:
		if f > math.MaxInt {
			return 0, fmt.Errorf("%v 超出范围", v)
		}
	case bool:
		return 0, fmt.Errorf("%v 不是整数", v)
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%v 不是整数", v)
	}
	return n, nil
}

func floatToInt(f float64) (int, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v 不是整数", f)
	}
	// float64(math.MaxInt) 恰为 2^63，等于它已经溢出
	if f >= float64(math.MaxInt) || f < float64(math.MinInt) {
		return 0, fmt.Errorf("%v 超出范围", f)
	}
	return int(f), nil
}

// violations 收集校验失败的键与原因
type violations struct {
	reasons map[string]string
}

func newViolations() *violations {
	return &violations{reasons: make(map[string]string)}
}

func (v *violations) add(key, reason string) {
	if _, ok := v.reasons[key]; !ok {
		v.reasons[key] = reason
	}
}

func (v *violations) err() error {
	if len(v.reasons) == 0 {
		return nil
	}
	keys := make([]string, 0, len(v.reasons))
	for k := range v.reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + v.reasons[k]
	}
	return errors.NewFilterValidationError(strings.Join(parts, "; "), keys...)
}
