package sql

import (
	"fmt"
	"strings"

	"github.com/menu-planning/backend-sub003/data/db/dialect"
)

// Row 单行写入数据，Columns 与 Values 按下标一一对应
type Row struct {
	Columns []string
	Values  []any
}

// RowFrom 按 order 的列顺序从 rec 取值。
// rec 中缺失的列被跳过，order 之外的键被忽略，因此输出顺序与 map 遍历顺序无关。
func RowFrom(rec map[string]any, order ...string) Row {
	row := Row{
		Columns: make([]string, 0, len(order)),
		Values:  make([]any, 0, len(order)),
	}
	for _, col := range order {
		if v, ok := rec[col]; ok {
			row.Columns = append(row.Columns, col)
			row.Values = append(row.Values, v)
		}
	}
	return row
}

func (r Row) index(col string) int {
	for i, c := range r.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

func (r Row) validate() error {
	if len(r.Columns) == 0 {
		return fmt.Errorf("row: no columns")
	}
	if len(r.Values) != len(r.Columns) {
		return fmt.Errorf("row: %d values for %d columns", len(r.Values), len(r.Columns))
	}
	seen := make(map[string]struct{}, len(r.Columns))
	for _, c := range r.Columns {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("row: duplicate column %s", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// renderInsert 渲染单行 INSERT；标识符非法属于编程错误，直接 panic
func renderInsert(d dialect.Dialect, table string, row Row) (string, []any) {
	if !isSafeIdentifier(table) {
		panic("insert: unsafe table name " + table)
	}
	quoted := make([]string, len(row.Columns))
	for i, col := range row.Columns {
		if !isSafeIdentifier(col) {
			panic("insert: unsafe column name " + col)
		}
		quoted[i] = d.QuoteIdentifier(col)
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.QuoteIdentifier(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(row.Columns)), ", "))
	sb.WriteString(")")

	args := make([]any, len(row.Values))
	copy(args, row.Values)
	return sb.String(), args
}
