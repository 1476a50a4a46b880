package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/cache"
	"github.com/yeisme/carevault/pkg/internal/storage/kv"
)

type departmentCount struct {
	Department string `json:"department"`
	Count      int64  `json:"count"`
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	c := cache.New(kv.NewMemoryKV(), "stats")

	want := []departmentCount{{"cardiology", 3}, {"oncology", 1}}
	require.NoError(t, cache.Set(ctx, c, "departments", want, time.Minute))

	got, err := cache.Get[[]departmentCount](ctx, c, "departments")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ok, err := c.Exists(ctx, "departments")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetMiss(t *testing.T) {
	c := cache.New(kv.NewMemoryKV(), "stats")

	_, err := cache.Get[int](context.Background(), c, "nothing")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV()
	a := cache.New(store, "a")
	b := cache.New(store, "b")

	require.NoError(t, cache.Set(ctx, a, "k", 1, 0))
	require.NoError(t, cache.Set(ctx, b, "k", 2, 0))

	va, err := cache.Get[int](ctx, a, "k")
	require.NoError(t, err)
	vb, err := cache.Get[int](ctx, b, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, va)
	assert.Equal(t, 2, vb)

	keys, err := a.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)

	require.NoError(t, a.Clear(ctx))

	_, err = cache.Get[int](ctx, a, "k")
	require.ErrorIs(t, err, cache.ErrMiss)

	_, err = cache.Get[int](ctx, b, "k")
	require.NoError(t, err)
}

func TestGetOrSetLoadsOnce(t *testing.T) {
	ctx := context.Background()
	c := cache.New(kv.NewMemoryKV(), "stats")

	var calls atomic.Int32

	load := func(context.Context) (int, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)

		return 42, nil
	}

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := cache.GetOrSet(ctx, c, "answer", load, time.Minute)
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}

	wg.Wait()

	v, err := cache.GetOrSet(ctx, c, "answer", load, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestGetOrSetPropagatesLoadError(t *testing.T) {
	ctx := context.Background()
	c := cache.New(kv.NewMemoryKV(), "")
	boom := errors.New("db down")

	_, err := cache.GetOrSet(ctx, c, "k", func(context.Context) (string, error) { return "", boom }, time.Minute)
	require.ErrorIs(t, err, boom)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c := cache.New(kv.NewMemoryKV(), "s")

	require.NoError(t, cache.Set(ctx, c, "k", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, err := cache.Get[string](ctx, c, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
}
