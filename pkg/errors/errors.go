// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 配置错误 (2xxx)
	CodeConfiguration     ErrorCode = "2001"
	CodeMissingCredential ErrorCode = "2002"

	// 模型调用错误 (3xxx)
	CodeTransport       ErrorCode = "3001"
	CodeModelTimeout    ErrorCode = "3002"
	CodeMalformedOutput ErrorCode = "3003"

	// 生成管线错误 (4xxx)
	CodeSchemaInvalid     ErrorCode = "4001"
	CodePartialGeneration ErrorCode = "4002"
	CodeIngestionInvalid  ErrorCode = "4003"
	CodeRunAborted        ErrorCode = "4004"

	// 产物错误 (5xxx)
	CodeProjectNotFound ErrorCode = "5001"
	CodeArchiveFailed   ErrorCode = "5002"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	// 拷贝后填充，预定义错误可被并发复用
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeIngestionInvalid:
		return http.StatusBadRequest
	case CodeNotFound, CodeProjectNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeSchemaInvalid, CodeMalformedOutput:
		return http.StatusUnprocessableEntity
	case CodeServiceUnavailable, CodeTransport, CodeModelTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrMissingCredential = New(CodeMissingCredential, "model api credential not configured")
	ErrModelTimeout      = New(CodeModelTimeout, "model call timed out")
	ErrMalformedOutput   = New(CodeMalformedOutput, "model output could not be parsed")
	ErrSchemaInvalid     = New(CodeSchemaInvalid, "no usable entities in schema")
	ErrProjectNotFound   = New(CodeProjectNotFound, "project not found or expired")
	ErrRunAborted        = New(CodeRunAborted, "generation run aborted")
)

// IsAppError 检查错误链上是否有 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
// 沿错误链查找，调用方的包装（fmt.Errorf %w、编排框架的节点包装）不丢失错误码。
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}
