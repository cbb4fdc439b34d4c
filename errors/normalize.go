package errors

import (
	stdErrors "errors"

	"github.com/menu-planning/backend-sub003/domain/entity"
	repository "github.com/menu-planning/backend-sub003/domain/repository"
)

// Normalize 将领域层/仓储层的哨兵错误规范化为 AppError。
//
// 注意：
//   - 如果传入的 err 已经是 IError，则原样返回；
//   - 数据库驱动错误（约束冲突、类型错误等）不在此处理，保持原样向上传播。
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := err.(IError); ok {
		return err
	}

	if stdErrors.Is(err, repository.ErrEntityNotFound) {
		return WrapError(err, ErrCodeNotFound, "实体未找到")
	}
	if stdErrors.Is(err, repository.ErrMultipleEntities) {
		return WrapError(err, ErrCodeMultipleFound, "匹配到多个实体")
	}
	if stdErrors.Is(err, entity.ErrInvalidID) {
		return WrapError(err, ErrCodeInvalidInput, "无效的实体 ID")
	}

	return err
}
