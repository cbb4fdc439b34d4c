// Package basic 提供基于 data/db 的 orm.ISession 实现
package basic

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	dbcore "github.com/menu-planning/backend-sub003/data/db"
	"github.com/menu-planning/backend-sub003/data/db/dialect"
	dbsql "github.com/menu-planning/backend-sub003/data/db/sql"
	"github.com/menu-planning/backend-sub003/data/orm"
	"github.com/menu-planning/backend-sub003/errors"
	"github.com/menu-planning/backend-sub003/logging"
)

type pendingMerge struct {
	table *orm.TableMeta
	rec   orm.Record
}

// Session 基于 IDatabase/ITransaction 的工作单元会话
//
// 暂存写入与查询由同一把锁串行化，PersistAll 的并发任务可以安全共享同一会话。
type Session struct {
	id      string
	db      dbcore.IDatabase
	tx      dbcore.ITransaction
	sql     dbsql.ISql
	dialect dialect.Dialect
	logger  logging.Logger

	mu      sync.Mutex
	pending []pendingMerge
	done    bool
}

// NewSession 创建不带事务的会话，Flush 后写入立即生效
func NewSession(db dbcore.IDatabase) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		db:      db,
		sql:     dbsql.New(db),
		dialect: dialect.FromDatabase(db),
		logger:  logging.ComponentLogger("data.orm.session").WithFields(logging.String("session_id", id)),
	}
}

// BeginSession 开启事务并创建会话，调用方负责 Commit 或 Rollback
func BeginSession(ctx context.Context, db dbcore.IDatabase) (*Session, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	s := NewSession(tx)
	s.tx = tx
	return s, nil
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Dialect() dialect.Dialect { return s.dialect }

// Merge 校验并暂存记录，记录会被复制，调用方之后的修改不影响暂存内容
func (s *Session) Merge(ctx context.Context, table *orm.TableMeta, rec orm.Record) error {
	p, err := prepare("merge", table, rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return errors.NewUsageError("merge: 会话 %s 已结束", s.id)
	}
	s.pending = append(s.pending, p)
	return nil
}

// Upsert 立即写入一条记录
//
// 持锁期间先按顺序写出已暂存的记录，再写入 rec，其它 goroutine 的 Merge 不会混入这次写入。
func (s *Session) Upsert(ctx context.Context, table *orm.TableMeta, rec orm.Record) error {
	p, err := prepare("upsert", table, rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return errors.NewUsageError("upsert: 会话 %s 已结束", s.id)
	}
	if err := s.flushLocked(ctx); err != nil {
		return fmt.Errorf("flush staged writes before %s: %w", table.Name(), err)
	}
	return s.write(ctx, p)
}

func prepare(op string, table *orm.TableMeta, rec orm.Record) (pendingMerge, error) {
	if table == nil {
		return pendingMerge{}, errors.NewUsageError("%s: 表描述符为空", op)
	}
	pk, ok := table.PrimaryKey()
	if !ok {
		return pendingMerge{}, errors.NewUsageError("%s: 表 %s 没有主键", op, table.Name())
	}
	if v, ok := rec[pk.Name]; !ok || v == nil {
		return pendingMerge{}, errors.NewUsageError("%s: 记录缺少主键 %s", op, pk.Qualified())
	}

	copied := make(orm.Record, len(rec))
	for k, v := range rec {
		if _, ok := table.Column(k); !ok {
			return pendingMerge{}, errors.NewUsageError("%s: 表 %s 没有列 %s", op, table.Name(), k)
		}
		copied[k] = v
	}
	return pendingMerge{table: table, rec: copied}, nil
}

// Flush 按暂存顺序执行全部 upsert
//
// 任一条失败时剩余暂存写入被丢弃，工作单元应随后回滚。
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Session) flushLocked(ctx context.Context) error {
	pending := s.pending
	s.pending = nil

	for i, p := range pending {
		if err := s.write(ctx, p); err != nil {
			s.logger.Warn(ctx, "flush dropped staged writes", logging.Int("dropped", len(pending)-i-1))
			return err
		}
	}
	return nil
}

func (s *Session) write(ctx context.Context, p pendingMerge) error {
	pk, _ := p.table.PrimaryKey()
	row := dbsql.RowFrom(p.rec, p.table.ColumnNames()...)
	if _, err := s.sql.UpsertInto(p.table.Name()).Row(row).Key(pk.Name).Exec(ctx); err != nil {
		s.logger.Warn(ctx, "upsert failed",
			logging.String("table", p.table.Name()),
			logging.Any("id", p.rec[pk.Name]),
			logging.Error(err))
		return err
	}
	s.logger.Debug(ctx, "upserted", logging.String("table", p.table.Name()), logging.Any("id", p.rec[pk.Name]))
	return nil
}

// Query 自动 Flush 后执行查询，并把每行扫描为 Record
func (s *Session) Query(ctx context.Context, query string, args ...any) ([]orm.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(ctx); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "query", logging.String("sql", query), logging.Int("args", len(args)))
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orm.Record
	for rows.Next() {
		rec := make(orm.Record)
		if err := sqlx.MapScan(rows, rec); err != nil {
			return nil, err
		}
		for k, v := range rec {
			// 部分驱动以 []byte 返回文本列
			if b, ok := v.([]byte); ok {
				rec[k] = string(b)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Pending 返回尚未 Flush 的暂存写入数量
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Commit 刷新暂存写入并提交事务
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return errors.NewUsageError("commit: 会话 %s 已结束", s.id)
	}
	if err := s.flushLocked(ctx); err != nil {
		return err
	}
	s.done = true
	if s.tx == nil {
		return nil
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit session %s: %w", s.id, err)
	}
	return nil
}

// Rollback 丢弃暂存写入并回滚事务，会话已结束时为空操作
func (s *Session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	if n := len(s.pending); n > 0 {
		s.logger.Debug(ctx, "rollback drops staged writes", logging.Int("count", n))
	}
	s.pending = nil
	if s.tx == nil {
		return nil
	}
	return s.tx.Rollback()
}
