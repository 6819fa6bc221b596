package breaker

import (
	"github.com/ceyewan/fusebox/clog"
	"github.com/ceyewan/fusebox/connector"
	"github.com/ceyewan/fusebox/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger       clog.Logger
	meter        metrics.Meter
	redisConn    connector.RedisConnector
	etcdConn     connector.EtcdConnector
	natsConn     connector.NATSConnector
	store        Store
	storeCfg     StoreConfig
	eventSubject string
	hook         StateChangeHook
}

// applyDefaults 为缺省选项填充安全默认值
func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
	if o.eventSubject == "" {
		o.eventSubject = DefaultEventSubject
	}
	o.storeCfg.setDefaults()
}

// WithLogger 设置 Logger，传入 nil 时使用 clog.Discard()
// 内部会自动添加 namespace: "breaker"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = clog.Discard()
		} else {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithRedisConnector 使用 Redis 作为分布式状态存储
// 配置后自动启用内存降级：Redis 不可用时调用仍然放行，状态退化为进程内维护
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redisConn = conn
	}
}

// WithEtcdConnector 使用 Etcd 作为分布式状态存储（与 Redis 二选一，Redis 优先）
// 同样自动启用内存降级
func WithEtcdConnector(conn connector.EtcdConnector) Option {
	return func(o *options) {
		o.etcdConn = conn
	}
}

// WithNATSConnector 设置 NATS 连接，用于发布状态变更事件
// 发布是尽力而为的：失败只记录日志，不影响受保护的调用
func WithNATSConnector(conn connector.NATSConnector) Option {
	return func(o *options) {
		o.natsConn = conn
	}
}

// WithStore 直接注入状态存储实现，优先级高于连接器选项
// 主要用于测试或自定义后端
func WithStore(store Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithStoreConfig 设置存储配置（键前缀、序列化格式）
func WithStoreConfig(cfg StoreConfig) Option {
	return func(o *options) {
		o.storeCfg = cfg
	}
}

// WithEventSubject 设置状态变更事件的 NATS 主题
// 默认为 DefaultEventSubject
func WithEventSubject(subject string) Option {
	return func(o *options) {
		if subject != "" {
			o.eventSubject = subject
		}
	}
}

// WithStateChangeHook 设置进程内的状态变更回调
// 回调在状态转换的调用路径上同步执行，应当保持轻量
func WithStateChangeHook(hook StateChangeHook) Option {
	return func(o *options) {
		o.hook = hook
	}
}
