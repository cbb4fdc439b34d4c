package orm

import (
	"fmt"

	dbsql "github.com/menu-planning/backend-sub003/data/db/sql"
	"github.com/menu-planning/backend-sub003/errors"
)

// Kind 列的值类别，决定过滤时可用的运算符
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindNumeric
	KindTime
	// KindCollection 数组/JSON 等集合列，不可直接过滤
	KindCollection
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindNumeric:
		return "numeric"
	case KindTime:
		return "time"
	case KindCollection:
		return "collection"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DiscardedColumnName 约定的逻辑丢弃列名
const DiscardedColumnName = "discarded"

// TableID 表的唯一标识，可比较，用作已连接表集合的键
type TableID struct {
	Schema string
	Name   string
}

// String 返回 SQL 中引用该表的名称
func (t TableID) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// FieldMeta 描述列元信息。
type FieldMeta struct {
	Column     string
	Kind       Kind
	PrimaryKey bool
	Nullable   bool
	// Discarded 标记逻辑丢弃列；名为 discarded 的 bool 列会被自动识别
	Discarded bool
}

// Column 已绑定到表的列
type Column struct {
	Table    TableID
	Name     string
	Kind     Kind
	Nullable bool
}

// Qualified 返回 table.column 形式
func (c Column) Qualified() string {
	return c.Table.String() + "." + c.Name
}

// TableMeta 静态表描述符，启动时构建，之后只读。
type TableMeta struct {
	id        TableID
	fields    []FieldMeta
	index     map[string]int
	pk        int
	discarded int
}

// NewTableMeta 构建表描述符
//
// 校验标识符合法、列名唯一、至多一个主键、至多一个丢弃列。
func NewTableMeta(schema, name string, fields ...FieldMeta) (*TableMeta, error) {
	id := TableID{Schema: schema, Name: name}
	if !dbsql.IsSafeIdentifier(id.String()) {
		return nil, errors.NewError(errors.ErrCodeInvalidInput, fmt.Sprintf("非法表名 %q", id.String()))
	}
	if len(fields) == 0 {
		return nil, errors.NewError(errors.ErrCodeInvalidInput, fmt.Sprintf("%s: 至少需要一列", id))
	}

	m := &TableMeta{
		id:        id,
		fields:    make([]FieldMeta, len(fields)),
		index:     make(map[string]int, len(fields)),
		pk:        -1,
		discarded: -1,
	}
	for i, f := range fields {
		if !dbsql.IsSafeIdentifier(f.Column) || containsDot(f.Column) {
			return nil, errors.NewError(errors.ErrCodeInvalidInput, fmt.Sprintf("%s: 非法列名 %q", id, f.Column))
		}
		if _, dup := m.index[f.Column]; dup {
			return nil, errors.NewError(errors.ErrCodeInvalidInput, fmt.Sprintf("%s: 列 %s 重复声明", id, f.Column))
		}
		if f.PrimaryKey {
			if m.pk >= 0 {
				return nil, errors.NewError(errors.ErrCodeInvalidInput, fmt.Sprintf("%s: 不支持复合主键", id))
			}
			m.pk = i
		}
		if !f.Discarded && f.Kind == KindBool && f.Column == DiscardedColumnName {
			f.Discarded = true
		}
		if f.Discarded {
			if f.Kind != KindBool {
				return nil, errors.NewError(errors.ErrCodeInvalidInput, fmt.Sprintf("%s: 丢弃列 %s 必须为 bool", id, f.Column))
			}
			if m.discarded >= 0 {
				return nil, errors.NewError(errors.ErrCodeInvalidInput, fmt.Sprintf("%s: 丢弃列重复声明", id))
			}
			m.discarded = i
		}
		m.fields[i] = f
		m.index[f.Column] = i
	}
	return m, nil
}

// MustTableMeta 同 NewTableMeta，失败时 panic，用于包级变量初始化
func MustTableMeta(schema, name string, fields ...FieldMeta) *TableMeta {
	m, err := NewTableMeta(schema, name, fields...)
	if err != nil {
		panic(err)
	}
	return m
}

func containsDot(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return true
		}
	}
	return false
}

func (m *TableMeta) ID() TableID { return m.id }

// Name 返回 SQL 中使用的表名
func (m *TableMeta) Name() string { return m.id.String() }

func (m *TableMeta) column(i int) Column {
	f := m.fields[i]
	return Column{Table: m.id, Name: f.Column, Kind: f.Kind, Nullable: f.Nullable}
}

// Column 按列名查找
func (m *TableMeta) Column(name string) (Column, bool) {
	i, ok := m.index[name]
	if !ok {
		return Column{}, false
	}
	return m.column(i), true
}

// Columns 按声明顺序返回全部列
func (m *TableMeta) Columns() []Column {
	cols := make([]Column, len(m.fields))
	for i := range m.fields {
		cols[i] = m.column(i)
	}
	return cols
}

// ColumnNames 按声明顺序返回未限定的列名
func (m *TableMeta) ColumnNames() []string {
	out := make([]string, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.Column
	}
	return out
}

func (m *TableMeta) PrimaryKey() (Column, bool) {
	if m.pk < 0 {
		return Column{}, false
	}
	return m.column(m.pk), true
}

func (m *TableMeta) DiscardedColumn() (Column, bool) {
	if m.discarded < 0 {
		return Column{}, false
	}
	return m.column(m.discarded), true
}

// SelectList 返回限定名形式的全部列，用作实体查询的 SELECT 列表
func (m *TableMeta) SelectList() []string {
	out := make([]string, len(m.fields))
	for i, f := range m.fields {
		out[i] = m.id.String() + "." + f.Column
	}
	return out
}
