package store

import (
	"errors"

	"gorm.io/gorm"

	"shortlink-analytics/internal/apperr"
)

// translate 将 gorm 错误转换为应用错误。
// 未识别的错误一律视为存储暂不可用。
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(op + ": 记录不存在")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict(op + ": 短码或别名已被占用")
	default:
		return apperr.Transient(op, err)
	}
}
