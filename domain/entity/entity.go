// Package entity 定义领域实体的核心接口体系
//
// 设计原则：
// 1. 接口最小化 - 每个接口只包含必需的方法
// 2. 组合优于继承 - 通过接口组合构建复杂类型
// 3. 泛型支持 - 提供类型安全的 ID 类型
package entity

// IObject 最基础的对象接口，所有实体的根接口
// 使用泛型支持不同的 ID 类型（int64、string、UUID等）
type IObject[T comparable] interface {
	// GetID 返回对象的唯一标识
	GetID() T
}

// IValidatable 可验证接口
// 实现此接口的实体在映射为存储记录之前会被校验
type IValidatable interface {
	// Validate 验证实体状态是否有效
	// 返回 error 表示验证失败，nil 表示验证成功
	Validate() error
}

// IDiscardable 逻辑丢弃接口
//
// 持久化时仓储读取 IsDiscarded() 写入表的 discarded 列，
// 领域对象本身不会被修改。
type IDiscardable interface {
	IsDiscarded() bool
}

// Discardable 可嵌入的丢弃标记
type Discardable struct {
	Discarded bool `json:"discarded"`
}

// IsDiscarded 实现 IDiscardable 接口
func (d *Discardable) IsDiscarded() bool {
	return d.Discarded
}

// Discard 标记为已丢弃
func (d *Discardable) Discard() error {
	if d.Discarded {
		return ErrAlreadyDiscarded
	}
	d.Discarded = true
	return nil
}

// 常见错误
var (
	ErrInvalidID        = &EntityError{Code: "INVALID_ID", Message: "entity id is empty or malformed"}
	ErrAlreadyDiscarded = &EntityError{Code: "ALREADY_DISCARDED", Message: "entity is already discarded"}
)

// EntityError 实体错误
type EntityError struct {
	Code    string
	Message string
}

func (e *EntityError) Error() string {
	return e.Message
}
