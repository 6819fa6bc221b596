package breaker

import (
	"context"
	"fmt"

	"github.com/ceyewan/fusebox/clog"
	"github.com/ceyewan/fusebox/xerrors"
)

// registry 注册表实现（非导出）
// 熔断器集合在构造时固定，运行期只读，无需加锁
type registry struct {
	breakers map[string]Breaker
	names    []string
}

// NewRegistry 创建熔断器注册表
// 所有服务共享同一个状态存储；重复或非法的服务配置会合并上报并导致构造失败
//
// 使用示例:
//
//	reg, err := breaker.NewRegistry(&breaker.RegistryConfig{
//		Store: breaker.StoreConfig{Prefix: "myapp:breaker:"},
//		Services: []*breaker.Config{
//			{Name: "llm-analysis", FailureThreshold: 3, Timeout: 120 * time.Second},
//			{Name: "user-lookup", FailureThreshold: 5, Timeout: 2 * time.Second},
//		},
//	}, breaker.WithRedisConnector(redisConn), breaker.WithLogger(logger))
func NewRegistry(cfg *RegistryConfig, opts ...Option) (Registry, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	opt := &options{storeCfg: cfg.Store}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	// 合并校验所有服务配置
	var collector xerrors.Collector
	seen := make(map[string]bool, len(cfg.Services))
	for _, svc := range cfg.Services {
		if svc == nil {
			collector.Collect(ErrConfigNil)
			continue
		}
		if err := svc.validate(); err != nil {
			collector.Collect(err)
			continue
		}
		if seen[svc.Name] {
			collector.Collect(fmt.Errorf("breaker: duplicate service %q", svc.Name))
			continue
		}
		seen[svc.Name] = true
	}
	if err := collector.Err(); err != nil {
		return nil, xerrors.Wrap(err, "breaker: invalid registry config")
	}

	// 共享存储构建一次，所有熔断器复用
	store, err := buildStore(opt)
	if err != nil {
		return nil, err
	}

	r := &registry{
		breakers: make(map[string]Breaker, len(cfg.Services)),
		names:    make([]string, 0, len(cfg.Services)),
	}
	for _, svc := range cfg.Services {
		r.breakers[svc.Name] = newBreaker(svc, store, opt)
		r.names = append(r.names, svc.Name)
	}

	opt.logger.Info("breaker registry created",
		clog.Int("services", len(r.names)))

	return r, nil
}

// Get 按服务名查找熔断器
func (r *registry) Get(name string) (Breaker, bool) {
	b, ok := r.breakers[name]
	return b, ok
}

// Names 返回所有已注册的服务名
func (r *registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Snapshots 返回所有服务的状态记录
func (r *registry) Snapshots(ctx context.Context) map[string]*Record {
	snapshots := make(map[string]*Record, len(r.breakers))
	for name, b := range r.breakers {
		rec, err := b.Snapshot(ctx)
		if err != nil {
			rec = newClosedRecord()
		}
		snapshots[name] = rec
	}
	return snapshots
}
