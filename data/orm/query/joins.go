package query

import (
	"fmt"
	"sort"
	"strings"

	dbsql "github.com/menu-planning/backend-sub003/data/db/sql"
	"github.com/menu-planning/backend-sub003/data/orm"
	"github.com/menu-planning/backend-sub003/errors"
)

// 连接类型
const (
	Inner = dbsql.InnerJoin
	Left  = dbsql.LeftJoin
)

// JoinOn 一个等值连接条件 left = right
type JoinOn struct {
	Left  orm.Column
	Right orm.Column
}

// On 构造连接条件
func On(left, right orm.Column) JoinOn {
	return JoinOn{Left: left, Right: right}
}

func renderOn(on []JoinOn) string {
	parts := make([]string, len(on))
	for i, c := range on {
		parts[i] = c.Left.Qualified() + " = " + c.Right.Qualified()
	}
	return strings.Join(parts, " AND ")
}

// Hop 连接路径中的一跳：从 From 表连接到 Table
type Hop struct {
	Table *orm.TableMeta
	From  orm.TableID
	On    []JoinOn
	Kind  dbsql.JoinKind
}

// JoinedSet 单条语句内已连接的表集合，只增不减
type JoinedSet map[orm.TableID]struct{}

func (s JoinedSet) Has(id orm.TableID) bool {
	_, ok := s[id]
	return ok
}

func (s JoinedSet) Add(id orm.TableID) {
	s[id] = struct{}{}
}

func (s JoinedSet) Clone() JoinedSet {
	c := make(JoinedSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Tables 返回按名称排序的表集合
func (s JoinedSet) Tables() []orm.TableID {
	out := make([]orm.TableID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// JoinPaths 以目标表为键的连接路径注册表
//
// 每个表只有一跳，From 必须是基表或已注册的表，因此路径无环，
// 不同映射器共享的前缀在构造上就是一致的。
type JoinPaths struct {
	base orm.TableID
	hops map[orm.TableID]Hop
}

// NewJoinPaths 创建以 base 为起点的路径注册表
func NewJoinPaths(base orm.TableID) *JoinPaths {
	return &JoinPaths{base: base, hops: make(map[orm.TableID]Hop)}
}

// Add 注册一跳
func (p *JoinPaths) Add(h Hop) error {
	if h.Table == nil {
		return errors.NewError(errors.ErrCodeConfig, "join: 目标表为空")
	}
	target := h.Table.ID()
	if target == p.base {
		return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("join: 不能连接基表 %s 自身", target))
	}
	if _, dup := p.hops[target]; dup {
		return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("join: 表 %s 的路径重复注册", target))
	}
	if h.From != p.base {
		if _, ok := p.hops[h.From]; !ok {
			return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("join: %s 的来源表 %s 不可达", target, h.From))
		}
	}
	if len(h.On) == 0 {
		return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("join: %s 缺少连接条件", target))
	}
	for _, c := range h.On {
		sides := map[orm.TableID]bool{c.Left.Table: true, c.Right.Table: true}
		if !sides[target] || !sides[h.From] {
			return errors.NewError(errors.ErrCodeConfig,
				fmt.Sprintf("join: 条件 %s = %s 必须连接 %s 与 %s", c.Left.Qualified(), c.Right.Qualified(), h.From, target))
		}
	}
	if h.Kind == "" {
		h.Kind = Inner
	}
	if h.Kind != Inner && h.Kind != Left {
		return errors.NewError(errors.ErrCodeConfig, fmt.Sprintf("join: 不支持的连接类型 %q", h.Kind))
	}
	p.hops[target] = h
	return nil
}

// Path 返回从基表到 target 的完整路径（按连接顺序），target 为基表时返回空路径
func (p *JoinPaths) Path(target orm.TableID) ([]Hop, bool) {
	if target == p.base {
		return nil, true
	}
	var rev []Hop
	for cur := target; cur != p.base; {
		h, ok := p.hops[cur]
		if !ok {
			return nil, false
		}
		rev = append(rev, h)
		cur = h.From
	}
	path := make([]Hop, len(rev))
	for i, h := range rev {
		path[len(rev)-1-i] = h
	}
	return path, true
}
