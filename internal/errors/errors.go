package errors

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
)

// Code 表示系统内的统一错误码。
type Code string

// Severity 描述错误的严重程度，用于日志分级。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes 为错误码提供默认行为。
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
}

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodePlatformFailure       Code = "PLATFORM_FAILURE"
	CodeGenerationFailure     Code = "GENERATION_FAILURE"
	CodeExplorerFailure       Code = "EXPLORER_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeEventFailure          Code = "EVENT_FAILURE"
	CodeTimeout               Code = "TIMEOUT"
)

var registry = map[Code]Attributes{
	CodeUnknown:               {Message: "unknown error", Severity: SeverityCritical},
	CodeInvalidArgument:       {Message: "invalid argument", Severity: SeverityInfo},
	CodeNotFound:              {Message: "resource not found", Severity: SeverityInfo},
	CodeInitializationFailure: {Message: "service not initialized", Severity: SeverityCritical},
	CodePlatformFailure:       {Message: "social platform failure", Severity: SeverityWarning, Retryable: true},
	CodeGenerationFailure:     {Message: "text generation failure", Severity: SeverityWarning, Retryable: true},
	CodeExplorerFailure:       {Message: "explorer request failure", Severity: SeverityWarning, Retryable: true},
	CodeStorageFailure:        {Message: "storage failure", Severity: SeverityCritical, Retryable: true},
	CodeEventFailure:          {Message: "event publish failure", Severity: SeverityWarning, Retryable: true},
	CodeTimeout:               {Message: "operation timed out", Severity: SeverityWarning, Retryable: true},
}

// AttributesOf 返回错误码对应的属性。若未注册则返回 UNKNOWN 的属性。
func AttributesOf(code Code) Attributes {
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error 是系统内统一的错误类型。
type Error struct {
	code      Code
	message   string
	cause     error
	retryable *bool
	severity  *Severity
}

// Option 定义可选配置。
type Option func(*Error)

// WithRetryable 指定错误是否可重试。
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithSeverity 覆盖默认严重程度。
func WithSeverity(sev Severity) Option {
	return func(e *Error) {
		e.severity = &sev
	}
}

// New 创建一个新的错误实例。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 在已有错误外包裹统一错误类型。
// 未显式指定时，沿用内层错误覆盖过的可重试性与严重程度。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	if inner, ok := From(cause); ok {
		if e.retryable == nil && inner.retryable != nil {
			e.retryable = inner.retryable
		}
		if e.severity == nil && inner.severity != nil {
			e.severity = inner.severity
		}
	}
	return e
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Unwrap 实现 errors.Unwrap。
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 允许通过 errors.Is 判断是否相同错误码。
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code 返回错误码。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回错误信息。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Retryable 判断是否可重试。
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.retryable != nil {
		return *e.retryable
	}
	return AttributesOf(e.code).Retryable
}

// Severity 返回错误严重程度。
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != nil {
		return *e.severity
	}
	return AttributesOf(e.code).Severity
}

// From 尝试从 error 中解析统一错误类型。
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误对应的错误码。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// RetryableError 判断任意 error 是否可重试。
func RetryableError(err error) bool {
	if e, ok := From(err); ok {
		return e.Retryable()
	}
	return false
}

// SeverityOf 返回错误严重程度。
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}

// LogLevel 将错误的严重程度映射为日志级别。
func LogLevel(err error) slog.Level {
	switch SeverityOf(err) {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
