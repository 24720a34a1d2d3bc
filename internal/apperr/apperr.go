// Package apperr 定义核心路径的错误分类
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别
type Kind string

const (
	// KindNotFound 短码无法解析
	KindNotFound Kind = "NOT_FOUND"
	// KindGone 链接存在但已过期或已停用
	KindGone Kind = "GONE"
	// KindTransient 存储或缓存暂不可用，可重试
	KindTransient Kind = "TRANSIENT"
	// KindValidation 输入格式错误
	KindValidation Kind = "VALIDATION"
	// KindConflict 短码或别名已被占用
	KindConflict Kind = "CONFLICT"
	// KindForbidden 无权访问
	KindForbidden Kind = "FORBIDDEN"
	// KindInternal 未分类错误
	KindInternal Kind = "INTERNAL"
)

// Error 应用错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按类别比较，errors.Is(err, apperr.ErrNotFound) 即可判断
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// 用于 errors.Is 的哨兵错误
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrGone       = &Error{Kind: KindGone}
	ErrTransient  = &Error{Kind: KindTransient}
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrForbidden  = &Error{Kind: KindForbidden}
)

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Gone(message string) *Error {
	return &Error{Kind: KindGone, Message: message}
}

func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// KindOf 返回错误链中第一个应用错误的类别
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus 将错误映射为 HTTP 状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindGone:
		return http.StatusGone
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
