package query

import (
	"fmt"

	"github.com/menu-planning/backend-sub003/data/orm"
	"github.com/menu-planning/backend-sub003/errors"
)

// 保留的过滤键，用于分页与排序
const (
	KeySkip  = "skip"
	KeyLimit = "limit"
	KeySort  = "sort"
)

func isReserved(key string) bool {
	return key == KeySkip || key == KeyLimit || key == KeySort
}

// boundKey 已注册的过滤键
type boundKey struct {
	key     string
	column  orm.Column
	mapper  int
	binding int
}

// Registry 某个仓储的列映射注册表
//
// 注册期完成全部校验：未知列、无连接路径的表、映射器内重复键、跨映射器歧义键。
// 注册完成后只读，可被并发查询共享。
type Registry struct {
	base    *orm.TableMeta
	policy  Policy
	paths   *JoinPaths
	mappers []*ColumnMapper
	keys    map[string]boundKey
}

// NewRegistry 创建注册表
func NewRegistry(base *orm.TableMeta, policy Policy) *Registry {
	return &Registry{
		base:   base,
		policy: policy.withDefaults(),
		paths:  NewJoinPaths(base.ID()),
		keys:   make(map[string]boundKey),
	}
}

func (r *Registry) Base() *orm.TableMeta { return r.base }
func (r *Registry) Policy() Policy       { return r.policy }
func (r *Registry) Paths() *JoinPaths    { return r.paths }

// AddJoin 注册一跳连接路径
func (r *Registry) AddJoin(h Hop) error {
	return r.paths.Add(h)
}

// AddMapper 注册映射器。
//
// 同一键已在先前的映射器中声明时返回错误；Policy.AllowAmbiguousKeys
// 开启时保留先注册者并忽略后来者。
func (r *Registry) AddMapper(m *ColumnMapper) error {
	if m == nil || m.table == nil {
		return errors.NewError(errors.ErrCodeConfig, "mapper: 目标表为空")
	}
	if _, ok := r.paths.Path(m.table.ID()); !ok {
		return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("mapper: 表 %s 没有从 %s 出发的连接路径", m.table.ID(), r.base.ID()))
	}

	idx := len(r.mappers)
	local := make(map[string]struct{}, len(m.bindings))
	staged := make([]boundKey, 0, len(m.bindings))
	for i, b := range m.bindings {
		if b.Key == "" {
			return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("mapper %s: 过滤键为空", m.table.ID()))
		}
		if isReserved(b.Key) {
			return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("mapper %s: %q 是保留键", m.table.ID(), b.Key))
		}
		if _, dup := local[b.Key]; dup {
			return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("mapper %s: 过滤键 %q 重复", m.table.ID(), b.Key))
		}
		local[b.Key] = struct{}{}

		col, ok := m.table.Column(b.Column)
		if !ok {
			return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("mapper %s: 未知列 %s", m.table.ID(), b.Column))
		}
		if prev, taken := r.keys[b.Key]; taken {
			if r.policy.AllowAmbiguousKeys {
				continue
			}
			return errors.NewError(errors.ErrCodeConfig,
				fmt.Sprintf("mapper %s: 过滤键 %q 已绑定到 %s", m.table.ID(), b.Key, prev.column.Qualified()))
		}
		staged = append(staged, boundKey{key: b.Key, column: col, mapper: idx, binding: i})
	}

	for _, k := range staged {
		r.keys[k.key] = k
	}
	r.mappers = append(r.mappers, m)
	return nil
}

// MustAddMapper 同 AddMapper，失败时 panic
func (r *Registry) MustAddMapper(m *ColumnMapper) *Registry {
	if err := r.AddMapper(m); err != nil {
		panic(err)
	}
	return r
}

// MustAddJoin 同 AddJoin，失败时 panic
func (r *Registry) MustAddJoin(h Hop) *Registry {
	if err := r.AddJoin(h); err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) declared(key string) bool {
	_, ok := r.keys[key]
	return ok
}

// Resolve 解析带后缀的过滤键，返回绑定列与显式运算符（可为空）
func (r *Registry) Resolve(key string) (orm.Column, Operator, bool) {
	bk, op, ok := r.resolve(key)
	return bk.column, op, ok
}

func (r *Registry) resolve(key string) (boundKey, Operator, bool) {
	base, op, ok := splitKey(key, r.declared)
	if !ok {
		return boundKey{}, "", false
	}
	return r.keys[base], op, true
}

// Keys 返回全部已声明的过滤键（按映射器注册顺序与声明顺序）
func (r *Registry) Keys() []string {
	out := make([]string, 0, len(r.keys))
	for mi, m := range r.mappers {
		for _, b := range m.bindings {
			if bk, ok := r.keys[b.Key]; ok && bk.mapper == mi {
				out = append(out, b.Key)
			}
		}
	}
	return out
}
