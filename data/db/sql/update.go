package sql

import (
	"strings"

	"github.com/menu-planning/backend-sub003/data/db/dialect"
)

// renderUpdate 渲染按键列定位的单行 UPDATE：非键列进入 SET，键列进入 WHERE。
// 行中只有键列时没有可更新的内容，ok 为 false。
func renderUpdate(d dialect.Dialect, table string, row Row, keys []string) (q string, args []any, ok bool) {
	if !isSafeIdentifier(table) {
		panic("update: unsafe table name " + table)
	}

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}

	sets := make([]string, 0, len(row.Columns))
	args = make([]any, 0, len(row.Columns))
	for i, col := range row.Columns {
		if isKey[col] {
			continue
		}
		if !isSafeIdentifier(col) {
			panic("update: unsafe column name " + col)
		}
		sets = append(sets, d.QuoteIdentifier(col)+" = ?")
		args = append(args, row.Values[i])
	}
	if len(sets) == 0 {
		return "", nil, false
	}

	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = d.QuoteIdentifier(k) + " = ?"
		args = append(args, row.Values[row.index(k)])
	}

	return "UPDATE " + d.QuoteIdentifier(table) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(conds, " AND "), args, true
}
