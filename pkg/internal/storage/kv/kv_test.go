package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/configs"
	"github.com/yeisme/carevault/pkg/internal/storage/kv"
)

// exerciseStore 对任一实现跑同一组行为检查.
func exerciseStore(t *testing.T, store kv.KVStore) {
	t.Helper()

	ctx := context.Background()

	_, err := store.Get(ctx, "session:missing")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, "session:a", []byte("alice"), 0))
	require.NoError(t, store.Set(ctx, "session:b", []byte("bob"), time.Hour))
	require.NoError(t, store.Set(ctx, "vault:key:1", []byte{0, 1, 2}, 0))

	v, err := store.Get(ctx, "session:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("alice"), v)

	v, err = store.Get(ctx, "session:b")
	require.NoError(t, err)
	assert.Equal(t, []byte("bob"), v)

	ok, err := store.Exists(ctx, "vault:key:1")
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := store.Keys(ctx, "session:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"session:a", "session:b"}, keys)

	all, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// 覆盖写入后读到新值
	require.NoError(t, store.Set(ctx, "session:a", []byte("alice2"), 0))
	v, err = store.Get(ctx, "session:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("alice2"), v)

	require.NoError(t, store.Delete(ctx, "session:a"))
	_, err = store.Get(ctx, "session:a")
	require.ErrorIs(t, err, kv.ErrNotFound)

	ok, err = store.Exists(ctx, "session:a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "never-existed"))
}

func exerciseTTL(t *testing.T, store kv.KVStore) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("x"), 30*time.Millisecond))

	_, err := store.Get(ctx, "short")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = store.Get(ctx, "short")
	require.ErrorIs(t, err, kv.ErrNotFound)

	keys, err := store.Keys(ctx, "short")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryKV(t *testing.T) {
	exerciseStore(t, kv.NewMemoryKV())
	exerciseTTL(t, kv.NewMemoryKV())
}

func TestMemoryKVReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV()

	in := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", in, 0))

	in[0] = 'z'

	out, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)

	out[1] = 'z'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestGroupcacheKV(t *testing.T) {
	exerciseStore(t, kv.NewGroupcacheKV(configs.GroupcacheKVConfig{Name: "test-gc-basic", CacheBytes: 1 << 20}))
	exerciseTTL(t, kv.NewGroupcacheKV(configs.GroupcacheKVConfig{Name: "test-gc-ttl", CacheBytes: 1 << 20}))
}

func TestNewKVClient(t *testing.T) {
	c, err := kv.NewKVClient(context.Background(), configs.KVConfig{Type: "memory"})
	require.NoError(t, err)

	defer c.Close()

	assert.Equal(t, kv.KVTypeMemory, c.Type)
	require.NoError(t, c.HealthCheck(context.Background()))

	_, err = kv.NewKVClient(context.Background(), configs.KVConfig{Type: "etcd"})
	assert.Error(t, err)
}

func TestRegisteredKVTypes(t *testing.T) {
	assert.Equal(t,
		[]kv.KVType{kv.KVTypeGroupcache, kv.KVTypeMemory, kv.KVTypeNATS, kv.KVTypeRedis},
		kv.GetRegisteredKVTypes())
}
