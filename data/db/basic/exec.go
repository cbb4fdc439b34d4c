package basic

import (
	"context"
	"database/sql"

	core "github.com/menu-planning/backend-sub003/data/db"
	"github.com/menu-planning/backend-sub003/data/db/dialect"
)

// querier *sql.DB 与 *sql.Tx 共有的执行方法
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// runner 执行前把 ? 占位符改写为方言形式，DB 与 Tx 共用
type runner struct {
	q       querier
	dialect dialect.Dialect
}

func (r runner) Query(ctx context.Context, query string, args ...any) (core.IRows, error) {
	rows, err := r.q.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (r runner) QueryRow(ctx context.Context, query string, args ...any) core.IRow {
	return &Row{row: r.q.QueryRowContext(ctx, r.dialect.Rebind(query), args...)}
}

func (r runner) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.dialect.Rebind(query), args...)
}
