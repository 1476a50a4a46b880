package kv

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/carevault/pkg/configs"
)

var httpPoolOnce sync.Once

// GroupcacheKV 本节点数据保存在 data 中，其他节点通过 groupcache 的 HTTP 对等池读取.
// groupcache 的缓存项不可变，因此只有本地缺失的键才会走 group 读取.
type GroupcacheKV struct {
	group *groupcache.Group
	peers bool

	mu   sync.RWMutex
	data map[string][]byte // 已做 TTL 包装的值
}

type groupcacheGetter struct {
	kv *GroupcacheKV
}

func (g *groupcacheGetter) Get(_ context.Context, key string, dest groupcache.Sink) error {
	g.kv.mu.RLock()
	value, exists := g.kv.data[key]
	g.kv.mu.RUnlock()

	if !exists {
		return notFound(key)
	}

	return dest.SetBytes(value)
}

// NewGroupcacheKV 创建 Groupcache KV 实例，group 名称在进程内必须唯一.
func NewGroupcacheKV(cfg configs.GroupcacheKVConfig) *GroupcacheKV {
	kv := &GroupcacheKV{data: make(map[string][]byte)}

	kv.group = groupcache.NewGroup(cfg.Name, cfg.CacheBytes, &groupcacheGetter{kv: kv})

	if len(cfg.Peers) > 0 {
		httpPoolOnce.Do(func() {
			pool := groupcache.NewHTTPPoolOpts(cfg.Self, &groupcache.HTTPPoolOptions{})
			pool.Set(cfg.Peers...)
		})

		kv.peers = true
	}

	return kv
}

func newGroupcacheFactory(_ context.Context, cfg configs.KVConfig) (KVStore, error) {
	return NewGroupcacheKV(cfg.Groupcache), nil
}

// Get 优先读本地数据，本地缺失且配置了对等节点时经 group 向归属节点读取.
func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	g.mu.RLock()
	raw, ok := g.data[key]
	g.mu.RUnlock()

	if !ok {
		if !g.peers {
			return nil, notFound(key)
		}

		if err := g.group.Get(ctx, key, groupcache.AllocatingByteSliceSink(&raw)); err != nil {
			return nil, notFound(key)
		}
	}

	val, expired, err := decodeWithTTL(raw, time.Now())
	if err != nil {
		return nil, err
	}

	if expired {
		_ = g.Delete(ctx, key)

		return nil, notFound(key)
	}

	return append([]byte(nil), val...), nil
}

// Set 设置本地键值.
func (g *GroupcacheKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := encodeWithTTL(append([]byte(nil), value...), ttl, time.Now())
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.data[key] = encoded
	g.mu.Unlock()

	return nil
}

// Delete 删除本地键.
func (g *GroupcacheKV) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.data, key)
	g.mu.Unlock()

	return nil
}

// Exists 检查键是否存在.
func (g *GroupcacheKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.Get(ctx, key)

	return err == nil, nil
}

// Keys 返回本地未过期的键.
func (g *GroupcacheKV) Keys(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()

	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]string, 0, len(g.data))

	for key, raw := range g.data {
		if !matchKey(pattern, key) {
			continue
		}

		if _, expired, err := decodeWithTTL(raw, now); err == nil && !expired {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// Close Groupcache 没有显式的关闭方法.
func (g *GroupcacheKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeGroupcache, newGroupcacheFactory)
}
