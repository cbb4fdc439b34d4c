package basic

import (
	"context"
	"database/sql"
	stderrors "errors"

	core "github.com/menu-planning/backend-sub003/data/db"
)

var errNestedTx = stderrors.New("basic.Tx: nested transactions are not supported")

// Tx 事务。同时满足 core.IDatabase，会话可以像使用 DB 一样在事务内执行
type Tx struct {
	runner
	owner *DB
	tx    *sql.Tx
}

func (t *Tx) Begin(ctx context.Context) (core.ITransaction, error) {
	return nil, errNestedTx
}

func (t *Tx) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.ITransaction, error) {
	return nil, errNestedTx
}

func (t *Tx) Ping(ctx context.Context) error { return t.owner.Ping(ctx) }
func (t *Tx) Raw() any                       { return t.tx }

// Close 回滚尚未结束的事务，不关闭所属连接池
func (t *Tx) Close() error { return t.Rollback() }

func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback 回滚事务；已提交或已回滚时为空操作，便于 defer
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !stderrors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// GetDialectName 与所属 DB 一致，返回驱动名
func (t *Tx) GetDialectName() string {
	return t.owner.driver
}
