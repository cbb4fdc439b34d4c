package repo

import (
	"fmt"
	"sync"
)

// State 被跟踪实体的状态
type State int

const (
	StateFetched State = iota
	StateAdded
	StateDirty
	StatePersisted
)

func (s State) String() string {
	switch s {
	case StateFetched:
		return "fetched"
	case StateAdded:
		return "added"
	case StateDirty:
		return "dirty"
	case StatePersisted:
		return "persisted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type tracked[E any] struct {
	entity E
	state  State
}

// Tracker 工作单元内已见实体的集合
//
// 以 ID 为键保存最近一次返回或添加的引用。成员判断按引用相等，
// 仅仅 ID 相同的另一个对象不算被跟踪。
type Tracker[E comparable, ID comparable] struct {
	mu    sync.Mutex
	items map[ID]*tracked[E]
	order []ID
}

// NewTracker 创建空的跟踪集合
func NewTracker[E comparable, ID comparable]() *Tracker[E, ID] {
	return &Tracker[E, ID]{items: make(map[ID]*tracked[E])}
}

// Track 记录实体，同一 ID 再次跟踪时替换引用
func (t *Tracker[E, ID]) Track(id ID, e E, state State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if item, ok := t.items[id]; ok {
		item.entity = e
		item.state = state
		return
	}
	t.items[id] = &tracked[E]{entity: e, state: state}
	t.order = append(t.order, id)
}

// Contains 判断 e 是否就是为 id 跟踪的那个引用
func (t *Tracker[E, ID]) Contains(id ID, e E) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	return ok && item.entity == e
}

// Mark 更新状态，e 不是被跟踪的引用时返回 false
func (t *Tracker[E, ID]) Mark(id ID, e E, state State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	if !ok || item.entity != e {
		return false
	}
	item.state = state
	return true
}

// State 返回 id 对应的状态
func (t *Tracker[E, ID]) State(id ID) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	if !ok {
		return 0, false
	}
	return item.state, true
}

// Snapshot 按首次跟踪的顺序返回当前引用
func (t *Tracker[E, ID]) Snapshot() []E {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]E, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.items[id].entity)
	}
	return out
}

func (t *Tracker[E, ID]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Reset 清空集合，在工作单元边界调用
func (t *Tracker[E, ID]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[ID]*tracked[E])
	t.order = nil
}
