package fetchpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgError "github.com/AzielCF/az-sticker/pkg/error"
)

func startPool(t *testing.T, workers, queue int) *Pool {
	t.Helper()
	pool := New(workers, queue)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})
	return pool
}

func TestPool_DispatchNonBlocking(t *testing.T) {
	pool := startPool(t, 2, 10)

	start := time.Now()
	ok := pool.TryDispatch(FetchJob{
		Namespace: "image",
		Query:     "cats",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})

	assert.True(t, ok)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestPool_SameQuerySequential(t *testing.T) {
	pool := startPool(t, 4, 100)

	var results []int
	var mu sync.Mutex
	for i := 1; i <= 5; i++ {
		val := i
		require.True(t, pool.TryDispatch(FetchJob{
			Namespace: "gif",
			Query:     "dance",
			Handler: func(ctx context.Context) error {
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 5
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, results)
}

func TestPool_RespectsMaxWorkers(t *testing.T) {
	maxWorkers := 3
	pool := startPool(t, maxWorkers, 100)

	var active, maxActive, done int32
	for i := 0; i < 10; i++ {
		pool.TryDispatch(FetchJob{
			Namespace: "image",
			Query:     fmt.Sprintf("query-%d", i),
			Handler: func(ctx context.Context) error {
				current := atomic.AddInt32(&active, 1)
				for {
					max := atomic.LoadInt32(&maxActive)
					if current <= max || atomic.CompareAndSwapInt32(&maxActive, max, current) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				atomic.AddInt32(&done, 1)
				return nil
			},
		})
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&done) == 10 }, 2*time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxActive), int32(maxWorkers))
}

func TestPool_QueueFull(t *testing.T) {
	pool := startPool(t, 1, 1)

	release := make(chan struct{})
	block := func(ctx context.Context) error {
		<-release
		return nil
	}
	defer close(release)

	// First job occupies the worker, second fills the queue.
	require.True(t, pool.TryDispatch(FetchJob{Namespace: "image", Query: "a", Handler: block}))
	assert.Eventually(t, func() bool { return pool.GetStats().ActiveWorkers == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, pool.TryDispatch(FetchJob{Namespace: "image", Query: "a", Handler: block}))

	assert.False(t, pool.TryDispatch(FetchJob{Namespace: "image", Query: "a", Handler: block}))
	err := pool.Run(context.Background(), "image", "a", block)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.EqualValues(t, 2, pool.GetStats().TotalDropped)
}

func TestPool_Run(t *testing.T) {
	pool := startPool(t, 2, 10)

	var calls int32
	err := pool.Run(context.Background(), "image", "cats", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls)

	boom := errors.New("boom")
	err = pool.Run(context.Background(), "image", "cats", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	stats := pool.GetStats()
	assert.EqualValues(t, 2, stats.TotalProcessed)
	assert.EqualValues(t, 1, stats.TotalErrors)
	assert.Contains(t, stats.ActiveQueries, "image|cats")
}

func TestPool_RunHonoursCallerContext(t *testing.T) {
	pool := startPool(t, 1, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Run(ctx, "gif", "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_PanicIsRecovered(t *testing.T) {
	pool := startPool(t, 1, 10)

	pool.TryDispatch(FetchJob{Namespace: "image", Query: "x", Handler: func(ctx context.Context) error {
		panic("bad tool output")
	}})
	err := pool.Run(context.Background(), "image", "x", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.EqualValues(t, 1, pool.GetStats().TotalErrors)
}

func TestPool_RunReturnsWhenSearchPanics(t *testing.T) {
	pool := startPool(t, 1, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := pool.Run(ctx, "image", "cats", func(ctx context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	var genericErr pkgError.GenericError
	require.True(t, errors.As(err, &genericErr))
	assert.Equal(t, 500, genericErr.StatusCode())
	assert.Contains(t, err.Error(), "boom")

	assert.Eventually(t, func() bool { return pool.GetStats().TotalErrors == 1 }, time.Second, 5*time.Millisecond)

	// The worker survives and keeps serving the same query.
	require.NoError(t, pool.Run(ctx, "image", "cats", func(ctx context.Context) error { return nil }))
}

func TestPool_GracefulShutdown(t *testing.T) {
	pool := New(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	var completed int32
	for i := 0; i < 2; i++ {
		pool.TryDispatch(FetchJob{
			Namespace: "image",
			Query:     fmt.Sprintf("q%d", i),
			Handler: func(ctx context.Context) error {
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&completed, 1)
				return nil
			},
		})
	}
	time.Sleep(10 * time.Millisecond)

	cancel()
	pool.Stop()

	assert.EqualValues(t, 2, atomic.LoadInt32(&completed))
	assert.False(t, pool.TryDispatch(FetchJob{Namespace: "image", Query: "late", Handler: func(ctx context.Context) error { return nil }}))
}

func TestPool_ConsistentHashing(t *testing.T) {
	pool := New(4, 100)

	shard := pool.shardFor("image|cats")
	assert.Equal(t, shard, pool.shardFor("image|cats"))
	assert.GreaterOrEqual(t, shard, 0)
	assert.Less(t, shard, 4)
}

func TestPool_FairDistribution(t *testing.T) {
	pool := New(4, 100)

	counts := make(map[int]int)
	for i := 0; i < 400; i++ {
		counts[pool.shardFor(fmt.Sprintf("image|query %d", i))]++
	}

	for shard, count := range counts {
		assert.Greater(t, count, 60, "worker %d", shard)
		assert.Less(t, count, 140, "worker %d", shard)
	}
}
