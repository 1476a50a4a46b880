// Package cache 在 KV 存储之上提供带命名空间的泛型缓存.
//
// 值用 sonic 编码为 JSON. GetOrSet 以 singleflight 合并同一键上的并发回源，
// 回源结果写缓存失败时仍返回给调用方.
//
//	c := cache.New(kvStore, "stats")
//	counts, err := cache.GetOrSet(ctx, c, "departments", loadCounts, 30*time.Second)
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/carevault/pkg/internal/storage/kv"
)

// ErrMiss 缓存未命中.
var ErrMiss = errors.New("cache: miss")

// Cache 基于 KV 存储的缓存，所有键都加上 namespace 前缀.
type Cache struct {
	store     kv.KVStore
	namespace string
	group     singleflight.Group
}

// New 创建缓存实例，namespace 为空时不加前缀.
func New(store kv.KVStore, namespace string) *Cache {
	return &Cache{store: store, namespace: namespace}
}

func (c *Cache) key(k string) string {
	if c.namespace == "" {
		return k
	}

	return c.namespace + ":" + k
}

// Get 读取缓存值，未命中时返回 ErrMiss.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.store.Get(ctx, c.key(key))
	if errors.Is(err, kv.ErrNotFound) {
		return zero, ErrMiss
	}

	if err != nil {
		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 写入缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.store.Set(ctx, c.key(key), data, ttl)
}

// GetOrSet 命中直接返回，否则调用 load 回源并写回缓存.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error), ttl time.Duration) (T, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}

		_ = Set(ctx, c, key, value, ttl)

		return value, nil
	})

	value, _ := v.(T)

	return value, err
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.key(key))
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.store.Exists(ctx, c.key(key))
}

// Keys 返回命名空间内的键（不含前缀）.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	pattern := "*"
	if c.namespace != "" {
		pattern = c.namespace + ":*"
	}

	keys, err := c.store.Keys(ctx, pattern)
	if err != nil {
		return nil, err
	}

	if c.namespace == "" {
		return keys, nil
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k[len(c.namespace)+1:])
	}

	return out, nil
}

// Clear 删除命名空间内的全部键.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.Keys(ctx)
	if err != nil {
		return err
	}

	for _, k := range keys {
		if err := c.Delete(ctx, k); err != nil {
			return err
		}
	}

	return nil
}
