package repository

import "context"

// IUnitOfWork 工作单元接口
//
// 使用模式：
//
//	uow, err := orm.BeginSession(ctx, db)
//	if err != nil { return err }
//	defer uow.Rollback(ctx)  // 确保异常时回滚
//
//	// 执行多个仓储操作...
//
//	return uow.Commit(ctx)   // 刷新暂存写入并提交
type IUnitOfWork interface {
	// Commit 刷新暂存的写入并提交事务
	Commit(ctx context.Context) error

	// Rollback 丢弃暂存写入并回滚事务；已提交后调用为空操作
	Rollback(ctx context.Context) error
}
