package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 稳定的错误类别标签，调用方可按此进行程序化判断
type Kind string

const (
	// KindValidation 输入校验失败（空问题、空文本等），用户可修正
	KindValidation Kind = "VALIDATION_ERROR"
	// KindProvider 外部模型服务不可达或返回错误，可重试
	KindProvider Kind = "PROVIDER_ERROR"
	// KindEmptyIndex 向量索引为空，属于预期内状态，用于驱动回退路径
	KindEmptyIndex Kind = "EMPTY_INDEX"
	// KindEmptyInput 文本为空，属于预期内状态，不直接暴露给终端用户
	KindEmptyInput Kind = "EMPTY_INPUT"
	// KindGenerationUnavailable 通用问答路径的生成失败，终态错误
	KindGenerationUnavailable Kind = "GENERATION_UNAVAILABLE"
	// KindInternal 其他内部错误
	KindInternal Kind = "INTERNAL_ERROR"
)

// AppError 应用错误结构体，携带机器可读的Kind与面向人的Message
type AppError struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	HTTPCode int    `json:"-"`
	Cause    error  `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewValidation 创建输入校验错误
func NewValidation(message string) *AppError {
	return &AppError{
		Kind:     KindValidation,
		Message:  message,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewProvider 创建外部服务错误
func NewProvider(message string) *AppError {
	return &AppError{
		Kind:     KindProvider,
		Message:  message,
		HTTPCode: http.StatusServiceUnavailable,
	}
}

// NewEmptyIndex 创建空索引错误
func NewEmptyIndex() *AppError {
	return &AppError{
		Kind:     KindEmptyIndex,
		Message:  "vector index is empty",
		HTTPCode: http.StatusConflict,
	}
}

// NewEmptyInput 创建空输入错误
func NewEmptyInput(message string) *AppError {
	return &AppError{
		Kind:     KindEmptyInput,
		Message:  message,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewGenerationUnavailable 创建生成服务不可用错误
func NewGenerationUnavailable(message string) *AppError {
	return &AppError{
		Kind:     KindGenerationUnavailable,
		Message:  message,
		HTTPCode: http.StatusServiceUnavailable,
	}
}

// NewInternal 创建内部错误
func NewInternal(message string) *AppError {
	return &AppError{
		Kind:     KindInternal,
		Message:  message,
		HTTPCode: http.StatusInternalServerError,
	}
}

// IsKind 判断错误链中是否存在指定Kind的AppError
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// GetAppError 获取AppError，如果不是则包装为内部错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternal("internal server error").WithCause(err)
}
