package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/fusebox/xerrors"
	"github.com/maypok86/otter/v2"
)

// memoryCapacity 内存存储的记录上限
// 每个服务名一条记录，正常部署远达不到上限；超出时按 LRU 淘汰
const memoryCapacity = 10_000

// memoryStore 进程内状态存储
//
// 作为独立部署的默认后端，也作为分布式后端故障时的降级副本。
// 使用写入过期策略（与 Redis TTL 语义一致）：过期从写入开始计算，读取不续期。
type memoryStore struct {
	cache *otter.Cache[string, Record]
}

// newMemoryStore 创建内存存储
func newMemoryStore() (*memoryStore, error) {
	cache, err := otter.New(&otter.Options[string, Record]{
		MaximumSize:      memoryCapacity,
		ExpiryCalculator: otter.ExpiryWriting[string, Record](stateTTL),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "breaker: failed to build memory store")
	}
	return &memoryStore{cache: cache}, nil
}

// Get 读取状态记录
// 缓存中保存的是值拷贝，返回副本指针，调用方的修改不会影响存储
func (s *memoryStore) Get(ctx context.Context, name string) (*Record, error) {
	rec, ok := s.cache.GetIfPresent(name)
	if !ok {
		return nil, ErrStateNotFound
	}
	return &rec, nil
}

// Set 写入状态记录并刷新过期时间
func (s *memoryStore) Set(ctx context.Context, name string, rec *Record, ttl time.Duration) error {
	s.cache.Set(name, *rec)
	if ttl > 0 && ttl != stateTTL {
		s.cache.SetExpiresAfter(name, ttl)
	}
	return nil
}

// Delete 删除状态记录（测试辅助）
func (s *memoryStore) Delete(ctx context.Context, name string) error {
	s.cache.Invalidate(name)
	return nil
}
