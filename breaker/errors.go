package breaker

import (
	"fmt"
	"time"

	"github.com/ceyewan/fusebox/xerrors"
)

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("breaker: config is nil")

	// ErrNameEmpty 服务名为空
	ErrNameEmpty = xerrors.New("breaker: service name is empty")

	// ErrCircuitOpen 熔断器处于打开状态，调用被快速拒绝
	ErrCircuitOpen = xerrors.New("breaker: circuit is open")

	// ErrTimeout 受保护的调用超时
	ErrTimeout = xerrors.New("breaker: call timed out")

	// ErrStateNotFound 存储中不存在该服务的状态记录
	ErrStateNotFound = xerrors.New("breaker: state not found")

	// ErrBreakerNotFound 注册表中不存在该服务的熔断器
	ErrBreakerNotFound = xerrors.New("breaker: breaker not found")
)

// OpenError 快速失败错误，携带服务名与下一次允许探测的时间
// 通过 xerrors.Is(err, ErrCircuitOpen) 识别
type OpenError struct {
	// Service 被熔断的服务名
	Service string

	// NextAttempt 下一次允许探测的时间
	NextAttempt time.Time
}

// Error 实现 error 接口
func (e *OpenError) Error() string {
	return fmt.Sprintf("breaker: circuit is open for service %q, next attempt at %s",
		e.Service, e.NextAttempt.Format(time.RFC3339))
}

// Unwrap 返回哨兵错误，支持 errors.Is 链
func (e *OpenError) Unwrap() error {
	return ErrCircuitOpen
}

// TimeoutError 调用超时错误，携带服务名与配置的超时时长
// 通过 xerrors.Is(err, ErrTimeout) 识别
type TimeoutError struct {
	// Service 服务名
	Service string

	// Timeout 配置的调用超时
	Timeout time.Duration
}

// Error 实现 error 接口
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("breaker: call to service %q timed out after %s", e.Service, e.Timeout)
}

// Unwrap 返回哨兵错误，支持 errors.Is 链
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
