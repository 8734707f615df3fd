package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/haierkeys/fast-note-anchor/internal/middleware"
	pkgapp "github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
)

// AppError 统一应用错误结构体
// 包含错误码、消息、详情、追踪ID和时间戳
type AppError struct {
	// Code 错误码
	Code int `json:"code"`
	// Message 错误消息
	Message string `json:"message"`
	// Details 错误详情（可选）
	Details []string `json:"details,omitempty"`
	// Status 外部服务返回的 HTTP 状态码（仅 PersistenceError 等使用）
	Status int `json:"status,omitempty"`
	// TraceID 请求追踪ID
	TraceID string `json:"traceId,omitempty"`
	// Cause 原始错误（不序列化到JSON）
	Cause error `json:"-"`
	// Timestamp 错误发生时间
	Timestamp time.Time `json:"timestamp"`

	// source 来源错误码，响应时按请求语言重新取消息
	source *code.Code
}

// Error 实现 error 接口，附带底层原因
func (e *AppError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap 实现 errors.Unwrap 接口，支持错误链路追踪
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 按错误码匹配，使 errors.Is(err, ErrXxx) 可用
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewAppError 从 Code 对象创建 AppError
func NewAppError(c *code.Code, cause error) *AppError {
	return &AppError{
		Code:      c.Code(),
		Message:   c.Msg(),
		Details:   c.Details(),
		Cause:     cause,
		Timestamp: time.Now(),
		source:    c,
	}
}

// NewAppErrorWithMessage 创建带自定义消息的 AppError
func NewAppErrorWithMessage(errorCode int, message string, cause error) *AppError {
	return &AppError{
		Code:      errorCode,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewPersistenceError 笔记服务返回非 2xx 时的错误，保留状态码与响应体
func NewPersistenceError(status int, body string) *AppError {
	e := NewAppError(code.ErrorPersistence, nil)
	e.Status = status
	if body != "" {
		e.Details = []string{body}
	}
	return e
}

// WithTraceID 设置 TraceID 并返回自身（链式调用）
func (e *AppError) WithTraceID(traceID string) *AppError {
	e.TraceID = traceID
	return e
}

// WithDetails 设置详情并返回自身（链式调用）
func (e *AppError) WithDetails(details ...string) *AppError {
	e.Details = details
	return e
}

// kind 错误种类哨兵，仅用于 errors.Is 比较
func kind(c *code.Code) *AppError {
	return &AppError{Code: c.Code(), Message: c.Msg()}
}

// 错误种类，用法: errors.Is(err, ErrSigningRejected)
var (
	ErrValidation          = kind(code.ErrorValidation)
	ErrWalletNotConnected  = kind(code.ErrorWalletNotConnected)
	ErrProviderNotFound    = kind(code.ErrorProviderNotFound)
	ErrUserRejected        = kind(code.ErrorUserRejected)
	ErrAddressRetrieval    = kind(code.ErrorAddressRetrieval)
	ErrNoActiveSession     = kind(code.ErrorNoActiveSession)
	ErrConnectInProgress   = kind(code.ErrorConnectInProgress)
	ErrProviderFailure     = kind(code.ErrorProviderFailure)
	ErrSigningRejected     = kind(code.ErrorSigningRejected)
	ErrSubmission          = kind(code.ErrorSubmission)
	ErrPersistence         = kind(code.ErrorPersistence)
	ErrSubmitInProgress    = kind(code.ErrorSubmitInProgress)
	ErrConfirmationTimeout = kind(code.ErrorConfirmationTimeout)
	ErrNoteNotFound        = kind(code.ErrorNoteNotFound)
	ErrSagaNotFound        = kind(code.ErrorSagaNotFound)
	ErrAlreadyAnchored     = kind(code.ErrorAlreadyAnchored)
	ErrTxNotFound          = kind(code.ErrorTxNotFound)
	ErrVerificationMissing = kind(code.ErrorVerificationNotFound)
	ErrExplorer            = kind(code.ErrorExplorer)
	ErrRetryNotAllowed     = kind(code.ErrorRetryNotAllowed)
)

// ErrorResponse 统一错误响应处理
// 从 gin.Context 获取 TraceID，将错误转换为 AppError 并返回 JSON 响应
func ErrorResponse(c *gin.Context, err error) {
	traceID := middleware.GetTraceIDFromGin(c)
	lang := pkgapp.RequestLang(c)

	var appErr *AppError
	if errors.As(err, &appErr) {
		resp := *appErr
		resp.TraceID = traceID
		if resp.source != nil {
			resp.Message = resp.source.MsgIn(lang)
		}
		if resp.Cause != nil {
			resp.Details = append(append([]string{}, resp.Details...), resp.Cause.Error())
		}
		c.JSON(http.StatusOK, &resp)
		return
	}

	// 检查是否是 Code 类型错误
	var codeErr *code.Code
	if errors.As(err, &codeErr) {
		response := &AppError{
			Code:      codeErr.Code(),
			Message:   codeErr.MsgIn(lang),
			Details:   codeErr.Details(),
			TraceID:   traceID,
			Timestamp: time.Now(),
		}
		c.JSON(codeErr.StatusCode(), response)
		return
	}

	// 未知错误，返回内部错误
	c.JSON(http.StatusOK, &AppError{
		Code:      code.ErrorServerInternal.Code(),
		Message:   code.ErrorServerInternal.MsgIn(lang),
		Details:   []string{err.Error()},
		TraceID:   traceID,
		Timestamp: time.Now(),
	})
}

// IsAppError 检查错误是否为 AppError 类型
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError 从错误链中获取 AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
