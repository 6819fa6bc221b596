// Package breaker 提供了分布式熔断器组件，用于故障隔离与自动恢复。
//
// breaker 是 fusebox 的核心组件，它提供了：
// - 三态熔断状态机（闭合 / 打开 / 半开），惰性转换，无任何后台定时器
// - 分布式状态共享（Redis / Etcd），多实例共享同一熔断视图
// - 内存降级：分布式存储故障时自动退回进程内状态，调用永不被存储阻塞
// - 单次调用超时竞速，超时按失败计入
// - 状态变更事件（进程内回调 + NATS 发布）与 Prometheus 指标
// - gRPC 客户端拦截器与 gin 管理接口的无侵入集成
//
// ## 基本使用
//
//	// 创建熔断器（无连接器时使用进程内存储）
//	brk, _ := breaker.New(&breaker.Config{
//		Name:             "llm-analysis",
//		FailureThreshold: 3,
//		RecoveryTimeout:  30 * time.Second,
//		Timeout:          120 * time.Second,
//	}, breaker.WithLogger(logger))
//
//	result, err := brk.Execute(ctx, func() (any, error) {
//		return client.Analyze(req)
//	})
//	if xerrors.Is(err, breaker.ErrCircuitOpen) {
//		// 快速失败：服务被熔断，fn 未被调用
//	}
//
// ## 分布式状态
//
//	// 多实例共享 Redis 中的熔断状态
//	brk, _ := breaker.New(cfg,
//		breaker.WithLogger(logger),
//		breaker.WithRedisConnector(redisConn),
//	)
//
// ## 注册表
//
//	// 一个进程启动时构建一次，所有熔断器共享同一存储
//	reg, _ := breaker.NewRegistry(&breaker.RegistryConfig{
//		Store:    breaker.StoreConfig{Prefix: "myapp:breaker:"},
//		Services: []*breaker.Config{llmCfg, userCfg},
//	}, breaker.WithRedisConnector(redisConn))
//
//	brk, ok := reg.Get("llm-analysis")
//
// ## 并发语义
//
// 状态记录的读-改-写不保证原子性。接受的竞态：恢复超时过后多个并发调用可能
// 同时进入半开探测；并发失败写入可能丢失计数（偏向保守，倾向于保持闭合）。
// 这些竞态不影响状态机的收敛性。
package breaker

import (
	"context"

	"github.com/ceyewan/fusebox/clog"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Breaker 熔断器核心接口，保护单个服务
type Breaker interface {
	// Execute 执行受熔断保护的函数
	// 打开状态下快速失败（fn 不被调用）；fn 与配置的超时竞速；
	// 操作错误原样透传，超时返回 TimeoutError，拒绝返回 OpenError
	Execute(ctx context.Context, fn func() (any, error)) (any, error)

	// State 返回当前状态（只读，不触发惰性转换）
	State(ctx context.Context) (State, error)

	// Snapshot 返回当前状态记录的副本（只读，不触发惰性转换）
	Snapshot(ctx context.Context) (*Record, error)

	// Reset 手动复位：无条件写回闭合默认记录
	Reset(ctx context.Context) error

	// Name 返回受保护服务的名称
	Name() string
}

// Registry 熔断器注册表，管理一组共享存储的熔断器
// 作为显式依赖注入使用，熔断器集合在进程生命周期内固定
type Registry interface {
	// Get 按服务名查找熔断器
	Get(name string) (Breaker, bool)

	// Names 返回所有已注册的服务名
	Names() []string

	// Snapshots 返回所有服务的状态记录
	Snapshots(ctx context.Context) map[string]*Record
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建熔断器实例
// 这是标准的工厂函数，支持在不依赖其他容器的情况下独立实例化
//
// 存储后端按选项决定：注入 Redis 或 Etcd 连接器时使用分布式存储并自动启用
// 内存降级；没有任何连接器时静默使用进程内存储（构造不会因缺少存储而失败）。
//
// 参数:
//   - cfg: 熔断器配置（构造时校验，此后不可变）
//   - opts: 可选参数 (Logger, Meter, 连接器, 存储, 事件)
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	store, err := buildStore(opt)
	if err != nil {
		return nil, err
	}

	opt.logger.Info("creating circuit breaker",
		clog.String("service", cfg.Name),
		clog.Int("failure_threshold", cfg.FailureThreshold),
		clog.Duration("failure_window", cfg.FailureWindow),
		clog.Duration("recovery_timeout", cfg.RecoveryTimeout),
		clog.Int("success_threshold", cfg.SuccessThreshold),
		clog.Duration("timeout", cfg.Timeout))

	return newBreaker(cfg, store, opt), nil
}

// buildStore 按选项构建状态存储
// 优先级：显式注入 > Redis > Etcd > 内存
func buildStore(opt *options) (Store, error) {
	if opt.store != nil {
		return opt.store, nil
	}

	memory, err := newMemoryStore()
	if err != nil {
		return nil, err
	}

	var primary Store
	switch {
	case opt.redisConn != nil:
		primary, err = newRedisStore(opt.redisConn.GetClient(), opt.storeCfg)
	case opt.etcdConn != nil:
		primary, err = newEtcdStore(opt.etcdConn.GetClient(), opt.storeCfg)
	default:
		return memory, nil
	}
	if err != nil {
		return nil, err
	}

	return newFailoverStore(primary, memory, opt.logger), nil
}
