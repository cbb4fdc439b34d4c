package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	core "github.com/menu-planning/backend-sub003/data/db"
	"github.com/menu-planning/backend-sub003/data/db/dialect"
)

type upsertBuilder struct {
	db      core.IDatabase
	dialect dialect.Dialect

	table string
	row   Row
	keys  []string
}

func (b *upsertBuilder) Row(row Row) IUpsertBuilder {
	b.row = row
	return b
}

func (b *upsertBuilder) Set(col string, val any) IUpsertBuilder {
	b.row.Columns = append(b.row.Columns, col)
	b.row.Values = append(b.row.Values, val)
	return b
}

func (b *upsertBuilder) Key(cols ...string) IUpsertBuilder {
	b.keys = cols
	return b
}

func (b *upsertBuilder) validate() error {
	if err := b.row.validate(); err != nil {
		return fmt.Errorf("upsert %s: %w", b.table, err)
	}
	if len(b.keys) == 0 {
		return fmt.Errorf("upsert %s: Key is required", b.table)
	}
	for _, key := range b.keys {
		if b.row.index(key) < 0 {
			return fmt.Errorf("upsert %s: key column %s not found in row", b.table, key)
		}
	}
	return nil
}

func (b *upsertBuilder) isKey(col string) bool {
	for _, key := range b.keys {
		if key == col {
			return true
		}
	}
	return false
}

// Build 渲染原生 upsert 语句：
//   - sqlite/postgres: INSERT ... ON CONFLICT (key) DO UPDATE SET col = excluded.col
//   - mysql: INSERT ... ON DUPLICATE KEY UPDATE col = VALUES(col)
//
// 没有非主键列时冲突即忽略。未知方言返回普通 INSERT，由 Exec 负责冲突后更新。
func (b *upsertBuilder) Build() (string, []any) {
	if err := b.validate(); err != nil {
		panic(err.Error())
	}
	q, args := renderInsert(b.dialect, b.table, b.row)
	return q + b.conflictClause(), args
}

func (b *upsertBuilder) conflictClause() string {
	quote := b.dialect.QuoteIdentifier
	sets := make([]string, 0, len(b.row.Columns))

	switch b.dialect.Upsert() {
	case dialect.UpsertOnConflict:
		for _, col := range b.row.Columns {
			if !b.isKey(col) {
				sets = append(sets, quote(col)+" = excluded."+quote(col))
			}
		}
		keys := make([]string, len(b.keys))
		for i, k := range b.keys {
			keys[i] = quote(k)
		}
		if len(sets) == 0 {
			return " ON CONFLICT (" + strings.Join(keys, ", ") + ") DO NOTHING"
		}
		return " ON CONFLICT (" + strings.Join(keys, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
	case dialect.UpsertOnDuplicateKey:
		for _, col := range b.row.Columns {
			if !b.isKey(col) {
				sets = append(sets, quote(col)+" = VALUES("+quote(col)+")")
			}
		}
		if len(sets) == 0 {
			// 主键自赋值等价于忽略冲突
			k := quote(b.keys[0])
			sets = append(sets, k+" = "+k)
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	default:
		return ""
	}
}

// Exec 执行 upsert。方言没有原生语法时先 INSERT，唯一键冲突后按键列 UPDATE；
// 只有键列的行在冲突时视为已存在，返回 nil 结果。
func (b *upsertBuilder) Exec(ctx context.Context) (sql.Result, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	if b.db == nil {
		return nil, fmt.Errorf("upsert %s: no database bound", b.table)
	}
	if b.dialect.Upsert() != dialect.UpsertNone {
		q, args := b.Build()
		return b.db.Exec(ctx, q, args...)
	}

	q, args := renderInsert(b.dialect, b.table, b.row)
	res, err := b.db.Exec(ctx, q, args...)
	if err == nil || !b.dialect.IsUniqueViolation(err) {
		return res, err
	}

	q, args, ok := renderUpdate(b.dialect, b.table, b.row, b.keys)
	if !ok {
		return nil, nil
	}
	return b.db.Exec(ctx, q, args...)
}
