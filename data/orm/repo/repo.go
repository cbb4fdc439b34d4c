// Package repo 提供基于过滤引擎与会话的通用仓储实现
package repo

import (
	"github.com/menu-planning/backend-sub003/data/orm"
	"github.com/menu-planning/backend-sub003/data/orm/query"
	"github.com/menu-planning/backend-sub003/domain/entity"
	"github.com/menu-planning/backend-sub003/logging"
)

// Repository 通用仓储
//
// 一个实例对应一个工作单元：共享会话，并维护本单元内已见实体的集合。
// 只有 Query/Get/Add 返回或接收过的引用才能被 Persist。
// 实体类型应为指针，引用相等才有意义。
type Repository[E interface {
	comparable
	entity.IObject[ID]
}, ID comparable] struct {
	sess    orm.ISession
	engine  *query.Engine
	mapper  orm.IDataMapper[E]
	table   *orm.TableMeta
	tracker *Tracker[E, ID]
	logger  logging.Logger
}

// New 创建仓储，基表取自引擎的注册表
func New[E interface {
	comparable
	entity.IObject[ID]
}, ID comparable](sess orm.ISession, engine *query.Engine, mapper orm.IDataMapper[E]) *Repository[E, ID] {
	table := engine.Registry().Base()
	return &Repository[E, ID]{
		sess:    sess,
		engine:  engine,
		mapper:  mapper,
		table:   table,
		tracker: NewTracker[E, ID](),
		logger: logging.ComponentLogger("data.orm.repo").WithFields(
			logging.String("table", table.Name()),
			logging.String("session_id", sess.ID()),
		),
	}
}

// Session 返回绑定的会话
func (r *Repository[E, ID]) Session() orm.ISession { return r.sess }

// Table 返回基表描述符
func (r *Repository[E, ID]) Table() *orm.TableMeta { return r.table }

// Engine 返回过滤引擎，供需要自定义起始语句的上下文使用
func (r *Repository[E, ID]) Engine() *query.Engine { return r.engine }

// Seen 返回本工作单元内被跟踪的实体
func (r *Repository[E, ID]) Seen() []E { return r.tracker.Snapshot() }

// StateOf 返回实体的跟踪状态，未跟踪时 ok 为 false
func (r *Repository[E, ID]) StateOf(e E) (State, bool) {
	if !r.tracker.Contains(e.GetID(), e) {
		return 0, false
	}
	return r.tracker.State(e.GetID())
}

// Reset 清空跟踪集合
func (r *Repository[E, ID]) Reset() { r.tracker.Reset() }
