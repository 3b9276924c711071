package pool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/container/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateful_PrivateInstancesPerReference(t *testing.T) {
	factory, created := counter()
	s := pool.NewStateful("session", pool.Options{MaxSize: 1})
	require.NoError(t, s.Init(factory))

	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "a"))
	require.NoError(t, s.Create(ctx, "b"))
	assert.Equal(t, []string{"a", "b"}, s.References())

	a, err := s.Get(ctx, "a")
	require.NoError(t, err)
	b, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, int32(2), created.Load())

	_, err = s.Free("a", a)
	require.NoError(t, err)
	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, a, again)

	// 实例不能跨引用归还
	_, err = s.Free("b", a)
	assert.ErrorIs(t, err, pool.ErrUnknownInstance)
}

func TestStateful_DuplicateAndUnknownReference(t *testing.T) {
	factory, _ := counter()
	s := pool.NewStateful("session", pool.Options{})
	require.NoError(t, s.Init(factory))

	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "a"))
	assert.ErrorIs(t, s.Create(ctx, "a"), pool.ErrDuplicateReference)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, pool.ErrUnknownReference)
	assert.True(t, pool.IsCreationError(err))

	_, err = s.Remove("missing")
	assert.ErrorIs(t, err, pool.ErrUnknownReference)
}

func TestStateful_RemoveReportsHeldInstancesOnFree(t *testing.T) {
	factory, _ := counter()
	s := pool.NewStateful("session", pool.Options{MinSize: 2})
	require.NoError(t, s.Init(factory))

	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "a"))
	held, err := s.Get(ctx, "a")
	require.NoError(t, err)

	idle, err := s.Remove("a")
	require.NoError(t, err)
	assert.Len(t, idle, 1)
	assert.Empty(t, s.References())

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, pool.ErrUnknownReference)

	destroy, err := s.Free("a", held)
	require.NoError(t, err)
	assert.True(t, destroy)

	// 全部归还后引用彻底消失
	_, err = s.Free("a", held)
	assert.ErrorIs(t, err, pool.ErrUnknownReference)
}

func TestStateful_Expire(t *testing.T) {
	factory, _ := counter()
	s := pool.NewStateful("session", pool.Options{MinSize: 1})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	require.NoError(t, s.Init(factory))

	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "idle"))
	require.NoError(t, s.Create(ctx, "busy"))
	require.NoError(t, s.Create(ctx, "fresh"))

	busy, err := s.Get(ctx, "busy")
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	fresh, err := s.Get(ctx, "fresh")
	require.NoError(t, err)
	_, err = s.Free("fresh", fresh)
	require.NoError(t, err)

	// 查看状态不刷新空闲计时
	_, err = s.Stats("idle")
	require.NoError(t, err)

	expired := s.Expire(5 * time.Minute)
	require.Len(t, expired, 1)
	assert.Equal(t, "idle", expired[0].Ref)
	assert.Len(t, expired[0].Instances, 1)
	assert.Equal(t, []string{"busy", "fresh"}, s.References())

	_, err = s.Free("busy", busy)
	require.NoError(t, err)
}

func TestStateful_Destroy(t *testing.T) {
	factory, _ := counter()
	s := pool.NewStateful("session", pool.Options{MinSize: 1})
	require.NoError(t, s.Init(factory))

	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "a"))
	require.NoError(t, s.Create(ctx, "b"))

	held, err := s.Get(ctx, "a")
	require.NoError(t, err)

	idle := s.Destroy()
	assert.Len(t, idle, 1)
	assert.Nil(t, s.Destroy())

	assert.ErrorIs(t, s.Create(ctx, "c"), pool.ErrDestroyed)
	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, pool.ErrDestroyed)

	destroy, err := s.Free("a", held)
	require.NoError(t, err)
	assert.True(t, destroy)
}

func TestStateful_CreateReturnsPartialPopulation(t *testing.T) {
	var n atomic.Int32
	factory := func(context.Context) (any, error) {
		id := int(n.Add(1))
		if id == 3 {
			return nil, errors.New("boom")
		}
		return &instance{id: id}, nil
	}
	s := pool.NewStateful("session", pool.Options{MinSize: 3})
	require.NoError(t, s.Init(factory))

	err := s.Create(context.Background(), "r1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")
	assert.True(t, pool.IsCreationError(err))

	orphans := pool.Orphans(err)
	require.Len(t, orphans, 2)
	assert.ElementsMatch(t, []int{1, 2}, []int{orphans[0].(*instance).id, orphans[1].(*instance).id})
	assert.Empty(t, s.References())

	// 引用名可以重新使用
	n.Store(10)
	require.NoError(t, s.Create(context.Background(), "r1"))
}

func TestStateful_ExpireNeverDropsHeldInstance(t *testing.T) {
	factory, _ := counter()
	s := pool.NewStateful("session", pool.Options{MaxSize: 1})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	require.NoError(t, s.Init(factory))

	ctx := context.Background()
	const refs = 8
	for i := 0; i < refs; i++ {
		require.NoError(t, s.Create(ctx, string(rune('a'+i))))
	}

	stop := make(chan struct{})
	var expirer sync.WaitGroup
	expirer.Add(1)
	go func() {
		defer expirer.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.Expire(0)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < refs; i++ {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				obj, err := s.Get(ctx, ref)
				if err != nil {
					return
				}
				destroy, err := s.Free(ref, obj)
				assert.NoError(t, err)
				assert.False(t, destroy, "reference %s expired while an instance was held", ref)
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()
	close(stop)
	expirer.Wait()
}
