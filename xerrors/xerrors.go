// Package xerrors 提供统一的错误处理工具。
//
// 约定：
//   - 组件的哨兵错误定义在各自包的 errors.go 中，格式为 "pkg: message"
//   - 跨层传递时用 Wrap/Wrapf 补充上下文，保留完整错误链
//   - 需要机器可读语义时用 WithCode 附加错误码
//
// 基本使用：
//
//	if err := store.Set(ctx, key, rec, ttl); err != nil {
//	    return xerrors.Wrapf(err, "persist state for %s", name)
//	}
//
//	if xerrors.Is(err, breaker.ErrCircuitOpen) {
//	    // 熔断拒绝，走降级逻辑
//	}
package xerrors

import (
	"errors"
	"fmt"
)

// Wrap 为错误补充上下文信息，保留错误链。err 为 nil 时返回 nil。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 为错误补充格式化的上下文信息。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WithCode 附加机器可读的错误码。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// CodedError 携带错误码的错误。
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// GetCode 从错误链中提取第一个错误码，不存在时返回空串。
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Must 在 err 非 nil 时 panic，仅用于进程初始化阶段。
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// Collector 累积多个错误，Err 返回合并结果。
// 适合配置校验等需要一次性报告全部问题的场景。
type Collector struct {
	errs []error
}

// Collect 记录一个错误，nil 被忽略。
func (c *Collector) Collect(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

// Err 返回合并后的错误；没有收集到错误时返回 nil。
func (c *Collector) Err() error {
	return Combine(c.errs...)
}

// MultiError 承载多个并列错误。
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%v (and %d more errors)", m.Errors[0], len(m.Errors)-1)
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 合并多个错误，过滤 nil。零个返回 nil，一个原样返回。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}

// 标准库再导出，避免调用方同时导入 errors 与 xerrors。
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// 通用哨兵错误，各组件按语义复用，具体含义由包装的上下文补充。
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTimeout      = errors.New("timeout")
	ErrUnavailable  = errors.New("unavailable")
)
