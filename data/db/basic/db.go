// Package basic 提供基于 database/sql 的 IDatabase 实现
package basic

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	core "github.com/menu-planning/backend-sub003/data/db"
	"github.com/menu-planning/backend-sub003/data/db/dialect"
)

// DB 基于 database/sql 的最小实现，满足 core.IDatabase 抽象
type DB struct {
	runner
	db     *sql.DB
	driver string
}

// New 根据 core.DBConfig 创建基础数据库实例
// 仅做最小封装：
// - 调用方必须确保所配置的 Driver 已通过空导入注册（例如在上层显式 `_ "modernc.org/sqlite"`）
// - DSN 非空时直接使用；否则 sqlite 使用 Database 作为文件路径，其他驱动按 Host/Port 拼接
func New(config core.DBConfig) (*DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = "sqlite"
	}
	dsn := buildDSN(driver, config)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// 连接池配置（可选）
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifetime) * time.Second)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(time.Duration(config.ConnMaxIdleTime) * time.Second)
	}

	// 基础可用性检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return Wrap(db, driver), nil
}

// Wrap 包装已打开的 *sql.DB（例如迁移工具共享的连接）
func Wrap(db *sql.DB, driver string) *DB {
	return &DB{runner: runner{q: db, dialect: dialect.New(driver)}, db: db, driver: driver}
}

func buildDSN(driver string, config core.DBConfig) string {
	if config.DSN != "" {
		return config.DSN
	}
	switch dialect.New(driver).Name() {
	case dialect.NamePostgres:
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			config.Username, config.Password, config.Host, config.Port, config.Database)
	case dialect.NameMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", config.Username, config.Password, config.Host, config.Port, config.Database)
		if config.ParseTime {
			dsn += "?parseTime=true"
		}
		return dsn
	default:
		return config.Database
	}
}

func (d *DB) Begin(ctx context.Context) (core.ITransaction, error) {
	return d.BeginTx(ctx, nil)
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.ITransaction, error) {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{runner: runner{q: tx, dialect: d.dialect}, owner: d, tx: tx}, nil
}

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }
func (d *DB) Close() error                   { return d.db.Close() }
func (d *DB) Raw() any                       { return d.db }

// SQLDB 返回底层 *sql.DB
func (d *DB) SQLDB() *sql.DB { return d.db }

// GetDialectName 实现 core.IDialectNameProvider 接口，返回底层 driver 名
func (d *DB) GetDialectName() string {
	return d.driver
}
