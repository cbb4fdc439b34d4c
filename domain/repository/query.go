package repository

// QueryOptions 查询选项
//
// 过滤条件本身通过 map 传入；保留键 skip、limit、sort 在 map 中出现时
// 优先于这里的同名选项。
type QueryOptions struct {
	// Sort 排序指令，"col" 升序，"-col" 降序
	Sort string

	// Limit 每页数量，0 表示使用策略默认值
	Limit int

	// Distinct 强制 SELECT DISTINCT
	Distinct bool

	// IncludeDiscarded 是否包含已丢弃的记录（仅对 Get/GetRaw 生效）
	IncludeDiscarded bool

	// Extensions 存储实现私有的选项，例如 SQL 仓储的起始语句；不认识的实现忽略
	Extensions []any
}

// QueryOption 查询选项函数
type QueryOption func(*QueryOptions)

// WithSort 设置排序指令
func WithSort(sort string) QueryOption {
	return func(o *QueryOptions) { o.Sort = sort }
}

// WithLimit 设置默认分页大小
func WithLimit(limit int) QueryOption {
	return func(o *QueryOptions) { o.Limit = limit }
}

// WithDistinct 强制去重
func WithDistinct() QueryOption {
	return func(o *QueryOptions) { o.Distinct = true }
}

// IncludeDiscarded 读取时不过滤已丢弃的记录
func IncludeDiscarded() QueryOption {
	return func(o *QueryOptions) { o.IncludeDiscarded = true }
}

// WithExtension 附加一个存储实现私有的选项
func WithExtension(ext any) QueryOption {
	return func(o *QueryOptions) { o.Extensions = append(o.Extensions, ext) }
}

// ApplyQueryOptions 合并选项
func ApplyQueryOptions(opts ...QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
