package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/fusebox/clog"
	"github.com/ceyewan/fusebox/xerrors"
	"golang.org/x/time/rate"
)

// stateTTL 存储记录的固定生存时间
// 超过 24 小时没有任何写入的记录等同于闭合默认值，过期即回收
const stateTTL = 24 * time.Hour

// ========================================
// 存储接口 (Store)
// ========================================

// Store 熔断器状态存储接口
// 实现必须是跨进程并发安全的；读-改-写本身不要求原子性（接受的竞态见包文档）
type Store interface {
	// Get 读取服务的状态记录，不存在时返回 ErrStateNotFound
	Get(ctx context.Context, name string) (*Record, error)

	// Set 写入服务的状态记录，并刷新 TTL
	Set(ctx context.Context, name string, rec *Record, ttl time.Duration) error
}

// buildKey 拼接存储键：前缀 + 服务名
func buildKey(prefix, name string) string {
	return prefix + name
}

// ========================================
// 降级存储 (Failover Store)
// ========================================

// failoverStore 分布式主存储 + 内存降级
//
// 主存储的任何读写错误都会被吞掉并退回内存副本：存储故障绝不能让受保护的
// 调用失败或阻塞。降级期间每个进程实例独立统计失败，属于接受的降级行为。
// 降级日志用 rate.Sometimes 限流，避免存储故障演变成日志风暴。
type failoverStore struct {
	primary  Store
	fallback Store
	logger   clog.Logger

	degradeLog rate.Sometimes
}

// newFailoverStore 创建降级存储
func newFailoverStore(primary, fallback Store, logger clog.Logger) *failoverStore {
	return &failoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		degradeLog: rate.Sometimes{
			First:    3,
			Interval: 30 * time.Second,
		},
	}
}

// Get 优先读主存储，失败时降级到内存
func (s *failoverStore) Get(ctx context.Context, name string) (*Record, error) {
	rec, err := s.primary.Get(ctx, name)
	if err == nil {
		// 主存储命中时同步内存副本，降级时能从最近的已知状态继续
		_ = s.fallback.Set(ctx, name, rec, stateTTL)
		return rec, nil
	}
	if xerrors.Is(err, ErrStateNotFound) {
		return nil, ErrStateNotFound
	}

	s.logDegradation("get", name, err)
	return s.fallback.Get(ctx, name)
}

// Set 双写：主存储失败时仅保留内存副本
func (s *failoverStore) Set(ctx context.Context, name string, rec *Record, ttl time.Duration) error {
	if err := s.fallback.Set(ctx, name, rec, ttl); err != nil {
		return err
	}
	if err := s.primary.Set(ctx, name, rec, ttl); err != nil {
		s.logDegradation("set", name, err)
	}
	return nil
}

// logDegradation 限流记录降级警告
func (s *failoverStore) logDegradation(op, name string, err error) {
	s.degradeLog.Do(func() {
		s.logger.Warn("breaker store degraded to in-memory fallback",
			clog.String("op", op),
			clog.String("service", name),
			clog.Error(err))
	})
}
