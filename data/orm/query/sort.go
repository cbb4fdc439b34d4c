package query

import (
	"strings"

	"github.com/menu-planning/backend-sub003/data/db/dialect"
	"github.com/menu-planning/backend-sub003/data/orm"
)

// sortTarget 已解析的排序指令
type sortTarget struct {
	column orm.Column
	desc   bool
	path   []Hop
}

// resolveSort 解析 "col" 或 "-col"。
//
// 先查已声明的过滤键，再查基表列；非基表列通过连接路径引入。
func (r *Registry) resolveSort(base *orm.TableMeta, directive string) (sortTarget, bool) {
	name := strings.TrimSpace(directive)
	desc := strings.HasPrefix(name, "-")
	name = strings.TrimPrefix(name, "-")
	if name == "" {
		return sortTarget{}, false
	}

	if bk, ok := r.keys[name]; ok {
		switch {
		case bk.column.Table == base.ID():
			return sortTarget{column: bk.column, desc: desc}, true
		case base.ID() == r.base.ID():
			if path, ok := r.paths.Path(bk.column.Table); ok {
				return sortTarget{column: bk.column, desc: desc, path: path}, true
			}
		}
	}
	if col, ok := base.Column(name); ok {
		return sortTarget{column: col, desc: desc}, true
	}
	return sortTarget{}, false
}

// applySort 连接所需的表并追加 NULLS LAST 排序项
func (s *Statement) applySort(d dialect.Dialect, t sortTarget) {
	s.joinPath(t.path)
	s.orderBy(d, t.column, t.desc)
}
