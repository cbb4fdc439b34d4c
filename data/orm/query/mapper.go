package query

import "github.com/menu-planning/backend-sub003/data/orm"

// Binding 过滤键到列的绑定
type Binding struct {
	Key    string
	Column string
}

// Bind 构造绑定
func Bind(key, column string) Binding {
	return Binding{Key: key, Column: column}
}

// SameName 为列名与过滤键相同的列批量构造绑定
func SameName(columns ...string) []Binding {
	out := make([]Binding, len(columns))
	for i, c := range columns {
		out[i] = Binding{Key: c, Column: c}
	}
	return out
}

// ColumnMapper 声明某张表上可过滤的键，按声明顺序保存。
// 连接路径不在映射器上声明，而是由注册表按目标表统一管理。
type ColumnMapper struct {
	table    *orm.TableMeta
	bindings []Binding
}

// NewColumnMapper 创建映射器，校验在注册到 Registry 时进行
func NewColumnMapper(table *orm.TableMeta, bindings ...Binding) *ColumnMapper {
	return &ColumnMapper{table: table, bindings: append([]Binding(nil), bindings...)}
}

func (m *ColumnMapper) Table() *orm.TableMeta { return m.table }

// Bindings 返回绑定的副本
func (m *ColumnMapper) Bindings() []Binding {
	return append([]Binding(nil), m.bindings...)
}
