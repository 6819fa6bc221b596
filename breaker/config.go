package breaker

import (
	"fmt"
	"time"
)

// ========================================
// 配置定义 (Configuration)
// ========================================

// 默认值定义
const (
	// DefaultFailureWindow 默认失败统计窗口
	DefaultFailureWindow = 60 * time.Second

	// DefaultRecoveryTimeout 默认打开状态持续时间，超时后允许探测
	DefaultRecoveryTimeout = 30 * time.Second

	// DefaultSuccessThreshold 默认半开关闭所需的连续成功次数
	DefaultSuccessThreshold = 3

	// DefaultCallTimeout 默认单次调用超时
	DefaultCallTimeout = 30 * time.Second
)

// Config 单个受保护服务的熔断器配置
// 构造时校验，构造后不可变
type Config struct {
	// Name 服务名（必填，唯一），同时作为存储键的命名空间
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// FailureThreshold 触发熔断的失败次数阈值（必填，> 0）
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// FailureWindow 失败统计窗口（默认：60s）
	// 距最近一次失败超过窗口后，失败计数从零重新累计
	FailureWindow time.Duration `json:"failure_window" yaml:"failure_window" mapstructure:"failure_window"`

	// RecoveryTimeout 打开状态持续时间（默认：30s）
	// 超时后的下一次调用转入半开状态进行探测
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout" mapstructure:"recovery_timeout"`

	// SuccessThreshold 半开状态下关闭熔断所需的连续成功次数（默认：3）
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold" mapstructure:"success_threshold"`

	// Timeout 单次调用超时（默认：30s）
	// 超时按失败计入，并返回超时错误
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// setDefaults 填充零值字段的默认值
func (c *Config) setDefaults() {
	if c.FailureWindow == 0 {
		c.FailureWindow = DefaultFailureWindow
	}
	if c.RecoveryTimeout == 0 {
		c.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = DefaultSuccessThreshold
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultCallTimeout
	}
}

// validate 校验配置合法性，先填充默认值
func (c *Config) validate() error {
	c.setDefaults()

	if c.Name == "" {
		return ErrNameEmpty
	}
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("breaker: failure_threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.FailureWindow < 0 || c.RecoveryTimeout < 0 || c.Timeout < 0 {
		return fmt.Errorf("breaker: durations must be non-negative for service %q", c.Name)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("breaker: success_threshold must be positive, got %d", c.SuccessThreshold)
	}
	return nil
}

// StoreConfig 状态存储配置
type StoreConfig struct {
	// Prefix 存储键前缀（默认："fusebox:breaker:"）
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// Serializer 记录序列化格式：json（默认）| msgpack
	Serializer string `json:"serializer" yaml:"serializer" mapstructure:"serializer"`
}

// setDefaults 填充默认值
func (c *StoreConfig) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = "fusebox:breaker:"
	}
	if c.Serializer == "" {
		c.Serializer = "json"
	}
}

// RegistryConfig 熔断器注册表配置
// 一个进程启动时构建一次，所有熔断器共享同一个存储
type RegistryConfig struct {
	// Store 共享的状态存储配置
	Store StoreConfig `json:"store" yaml:"store" mapstructure:"store"`

	// Services 受保护服务的配置列表
	Services []*Config `json:"services" yaml:"services" mapstructure:"services"`
}
