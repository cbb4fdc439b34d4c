package repo

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/menu-planning/backend-sub003/data/orm"
	"github.com/menu-planning/backend-sub003/domain/entity"
	"github.com/menu-planning/backend-sub003/errors"
	"github.com/menu-planning/backend-sub003/logging"
)

// Add 校验并暂存新实体，随后的查询或 Flush 会写入
func (r *Repository[E, ID]) Add(ctx context.Context, e E) error {
	var zeroID ID
	if e.GetID() == zeroID {
		return errors.Normalize(entity.ErrInvalidID)
	}
	rec, err := r.record(ctx, e)
	if err != nil {
		return err
	}
	if err := r.sess.Merge(ctx, r.table, rec); err != nil {
		return err
	}
	r.tracker.Track(e.GetID(), e, StateAdded)
	return nil
}

// MarkDirty 标记被跟踪的实体已修改
func (r *Repository[E, ID]) MarkDirty(e E) error {
	if !r.tracker.Mark(e.GetID(), e, StateDirty) {
		return errors.NewUsageError("mark dirty: %s 的实体 %v 未被当前工作单元跟踪", r.table.Name(), e.GetID())
	}
	return nil
}

// Persist 立即写入一个被跟踪的实体
//
// 未被跟踪的引用直接返回 UsageError，不执行任何 SQL。
// 写入经由会话的 Upsert 完成，并发的 Persist 只会得到自己实体的写入结果。
func (r *Repository[E, ID]) Persist(ctx context.Context, e E) error {
	id := e.GetID()
	if !r.tracker.Contains(id, e) {
		return errors.NewUsageError("persist: %s 的实体 %v 未被当前工作单元跟踪", r.table.Name(), id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := r.record(ctx, e)
	if err != nil {
		return err
	}
	if err := r.sess.Upsert(ctx, r.table, rec); err != nil {
		r.logger.Warn(ctx, "persist failed", logging.Any("id", id), logging.Error(err))
		return err
	}
	r.tracker.Mark(id, e, StatePersisted)
	return nil
}

// PersistAll 并发持久化全部被跟踪的实体
//
// 首个失败会取消其余任务，错误在所有已启动任务结束后返回。
func (r *Repository[E, ID]) PersistAll(ctx context.Context) error {
	seen := r.tracker.Snapshot()
	if len(seen) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if n := r.engine.Registry().Policy().PersistConcurrency; n > 0 {
		g.SetLimit(n)
	}
	for _, e := range seen {
		e := e // go 1.21 下保持逐次迭代的循环变量语义
		g.Go(func() error {
			return r.Persist(gctx, e)
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn(ctx, "persist all failed", logging.Int("entities", len(seen)), logging.Error(err))
		return err
	}
	r.logger.Debug(ctx, "persisted all", logging.Int("entities", len(seen)))
	return nil
}

// record 校验并映射实体。丢弃标记只作为列值写入，实体本身不被修改
func (r *Repository[E, ID]) record(ctx context.Context, e E) (orm.Record, error) {
	if v, ok := any(e).(entity.IValidatable); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	rec, err := r.mapper.ToRecord(ctx, r.sess, e)
	if err != nil {
		return nil, err
	}
	if dc, ok := r.table.DiscardedColumn(); ok {
		if d, ok := any(e).(entity.IDiscardable); ok {
			if rec == nil {
				rec = orm.Record{}
			}
			rec[dc.Name] = d.IsDiscarded()
		}
	}
	return rec, nil
}
