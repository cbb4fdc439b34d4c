package repo

import (
	"context"

	"github.com/menu-planning/backend-sub003/data/orm"
	"github.com/menu-planning/backend-sub003/data/orm/query"
	"github.com/menu-planning/backend-sub003/domain/repository"
	"github.com/menu-planning/backend-sub003/errors"
	"github.com/menu-planning/backend-sub003/logging"
)

// getLimit Get 只需区分 0、1、多条
const getLimit = 2

func (r *Repository[E, ID]) compile(ctx context.Context, filters map[string]any, opts []repository.QueryOption) (*query.Statement, error) {
	o := repository.ApplyQueryOptions(opts...)
	var copts []query.CompileOption
	if o.Sort != "" {
		copts = append(copts, query.WithSort(o.Sort))
	}
	if o.Limit > 0 {
		copts = append(copts, query.WithLimit(o.Limit))
	}
	if o.Distinct {
		copts = append(copts, query.WithDistinct())
	}
	for _, ext := range o.Extensions {
		if co, ok := ext.(query.CompileOption); ok {
			copts = append(copts, co)
		}
	}
	stmt, err := r.engine.Compile(r.sess.Dialect(), filters, copts...)
	if err != nil {
		r.logger.Debug(ctx, "filters rejected", logging.Error(err))
		return nil, err
	}
	r.logger.Debug(ctx, "compiled",
		logging.Int("joins", stmt.JoinCount()),
		logging.Bool("distinct", stmt.Distinct()))
	return stmt, nil
}

func (r *Repository[E, ID]) run(ctx context.Context, stmt *query.Statement) ([]orm.Record, error) {
	q, args := stmt.Build()
	return r.sess.Query(ctx, q, args...)
}

// Query 按过滤条件查询并跟踪结果
func (r *Repository[E, ID]) Query(ctx context.Context, filters map[string]any, opts ...repository.QueryOption) ([]E, error) {
	stmt, err := r.compile(ctx, filters, opts)
	if err != nil {
		return nil, err
	}
	if stmt.Base().ID() != r.table.ID() {
		return nil, errors.NewUsageError("query: 基表 %s 不是 %s，请改用 QueryRaw", stmt.Base().ID(), r.table.ID())
	}
	rows, err := r.run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return r.toDomain(ctx, rows)
}

// QueryRaw 按过滤条件查询原始记录，结果不被跟踪
func (r *Repository[E, ID]) QueryRaw(ctx context.Context, filters map[string]any, opts ...repository.QueryOption) ([]map[string]any, error) {
	stmt, err := r.compile(ctx, filters, opts)
	if err != nil {
		return nil, err
	}
	rows, err := r.run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []orm.Record{}
	}
	return rows, nil
}

// Get 按主键读取单个实体；默认排除已丢弃的记录
func (r *Repository[E, ID]) Get(ctx context.Context, id ID, opts ...repository.QueryOption) (E, error) {
	var zero E
	rec, err := r.getRecord(ctx, id, opts)
	if err != nil {
		return zero, err
	}
	out, err := r.toDomain(ctx, []orm.Record{rec})
	if err != nil {
		return zero, err
	}
	return out[0], nil
}

// GetRaw 按主键读取原始记录，不跟踪
func (r *Repository[E, ID]) GetRaw(ctx context.Context, id ID, opts ...repository.QueryOption) (map[string]any, error) {
	return r.getRecord(ctx, id, opts)
}

func (r *Repository[E, ID]) getRecord(ctx context.Context, id ID, opts []repository.QueryOption) (orm.Record, error) {
	pk, ok := r.table.PrimaryKey()
	if !ok {
		return nil, errors.NewUsageError("get: 表 %s 没有主键", r.table.Name())
	}
	o := repository.ApplyQueryOptions(opts...)

	stmt := query.NewStatement(r.table).Where(pk.Qualified()+" = ?", id)
	if dc, ok := r.table.DiscardedColumn(); ok && !o.IncludeDiscarded {
		stmt.Where(dc.Qualified() + " IS FALSE")
	}
	stmt.Page(getLimit, 0)

	rows, err := r.run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, errors.NewNotFoundError(r.table.Name(), id)
	case 1:
		return rows[0], nil
	default:
		return nil, errors.NewMultipleFoundError(r.table.Name(), id)
	}
}

func (r *Repository[E, ID]) toDomain(ctx context.Context, rows []orm.Record) ([]E, error) {
	out := make([]E, 0, len(rows))
	for _, rec := range rows {
		e, err := r.mapper.ToDomain(rec)
		if err != nil {
			return nil, errors.Wrap(ctx, err, errors.ErrCodeInternal, "map record of "+r.table.Name())
		}
		r.tracker.Track(e.GetID(), e, StateFetched)
		out = append(out, e)
	}
	return out, nil
}
