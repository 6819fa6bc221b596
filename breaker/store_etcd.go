package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/fusebox/xerrors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// etcdStore 基于 Etcd 的分布式状态存储
// TTL 通过每次写入时申请的租约实现，与 Redis 的键过期语义保持一致
type etcdStore struct {
	client *clientv3.Client
	prefix string
	ser    serializer
}

// newEtcdStore 创建 Etcd 存储
func newEtcdStore(client *clientv3.Client, cfg StoreConfig) (*etcdStore, error) {
	cfg.setDefaults()
	ser, err := newSerializer(cfg.Serializer)
	if err != nil {
		return nil, err
	}
	return &etcdStore{
		client: client,
		prefix: cfg.Prefix,
		ser:    ser,
	}, nil
}

// Get 读取状态记录
func (s *etcdStore) Get(ctx context.Context, name string) (*Record, error) {
	resp, err := s.client.Get(ctx, buildKey(s.prefix, name))
	if err != nil {
		return nil, xerrors.Wrapf(err, "breaker: etcd get %q failed", name)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrStateNotFound
	}

	rec := &Record{}
	if err := s.ser.Unmarshal(resp.Kvs[0].Value, rec); err != nil {
		return nil, xerrors.Wrapf(err, "breaker: decode record for %q failed", name)
	}
	return rec, nil
}

// Set 写入状态记录，挂到新租约上实现 TTL
func (s *etcdStore) Set(ctx context.Context, name string, rec *Record, ttl time.Duration) error {
	data, err := s.ser.Marshal(rec)
	if err != nil {
		return xerrors.Wrapf(err, "breaker: encode record for %q failed", name)
	}

	lease, err := s.client.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return xerrors.Wrapf(err, "breaker: etcd lease grant for %q failed", name)
	}
	if _, err := s.client.Put(ctx, buildKey(s.prefix, name), string(data), clientv3.WithLease(lease.ID)); err != nil {
		return xerrors.Wrapf(err, "breaker: etcd put %q failed", name)
	}
	return nil
}
