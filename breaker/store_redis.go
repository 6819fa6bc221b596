package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/fusebox/xerrors"
	"github.com/redis/go-redis/v9"
)

// redisStore 基于 Redis 的分布式状态存储
// 键为 prefix + name，值为序列化后的 Record，写入时携带 TTL
type redisStore struct {
	client *redis.Client
	prefix string
	ser    serializer
}

// newRedisStore 创建 Redis 存储
func newRedisStore(client *redis.Client, cfg StoreConfig) (*redisStore, error) {
	cfg.setDefaults()
	ser, err := newSerializer(cfg.Serializer)
	if err != nil {
		return nil, err
	}
	return &redisStore{
		client: client,
		prefix: cfg.Prefix,
		ser:    ser,
	}, nil
}

// Get 读取状态记录
func (s *redisStore) Get(ctx context.Context, name string) (*Record, error) {
	data, err := s.client.Get(ctx, buildKey(s.prefix, name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrStateNotFound
		}
		return nil, xerrors.Wrapf(err, "breaker: redis get %q failed", name)
	}

	rec := &Record{}
	if err := s.ser.Unmarshal(data, rec); err != nil {
		return nil, xerrors.Wrapf(err, "breaker: decode record for %q failed", name)
	}
	return rec, nil
}

// Set 写入状态记录并刷新 TTL
func (s *redisStore) Set(ctx context.Context, name string, rec *Record, ttl time.Duration) error {
	data, err := s.ser.Marshal(rec)
	if err != nil {
		return xerrors.Wrapf(err, "breaker: encode record for %q failed", name)
	}
	if err := s.client.Set(ctx, buildKey(s.prefix, name), data, ttl).Err(); err != nil {
		return xerrors.Wrapf(err, "breaker: redis set %q failed", name)
	}
	return nil
}
