package executor

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
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func newRuntime(t *testing.T, cfg Config) *Runtime {
	t.Helper()
	rt, err := Build(cfg, zap.NewNop())
	require.NoError(t, err)
	return rt
}

func TestBuild_ShutdownLeavesNoWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newRuntime(t, Config{WorkerThreads: 4, QueueSize: 16})
	assert.Len(t, rt.Workers(), 4)

	start := time.Now()
	assert.True(t, rt.Shutdown(time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestBuild_DefaultsToNumCPU(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newRuntime(t, Config{})
	defer rt.Shutdown(time.Second)

	assert.NotEmpty(t, rt.Workers())
	assert.Equal(t, len(rt.Workers()), rt.Stats().Workers)
}

func TestBuild_NegativeWorkers(t *testing.T) {
	_, err := Build(Config{WorkerThreads: -1}, zap.NewNop())

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
}

func TestBuild_ThreadStartHookRunsPerWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	var seq atomic.Int32
	var mu sync.Mutex
	var hooked []string

	rt := newRuntime(t, Config{
		WorkerThreads: 3,
		ThreadName: func() string {
			return fmt.Sprintf("test-worker-%d", seq.Add(1))
		},
		OnThreadStart: func(name string) error {
			mu.Lock()
			hooked = append(hooked, name)
			mu.Unlock()
			return nil
		},
	})
	defer rt.Shutdown(time.Second)

	assert.Equal(t, []string{"test-worker-1", "test-worker-2", "test-worker-3"}, rt.Workers())
	assert.ElementsMatch(t, rt.Workers(), hooked)
}

func TestBuild_ThreadStartFailureIsFatal(t *testing.T) {
	defer goleak.VerifyNone(t)

	pinErr := errors.New("sched_setaffinity: invalid argument")
	var calls atomic.Int32

	rt, err := Build(Config{
		WorkerThreads: 4,
		OnThreadStart: func(name string) error {
			if calls.Add(1) == 2 {
				return pinErr
			}
			return nil
		},
	}, zap.NewNop())

	assert.Nil(t, rt)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.NotEmpty(t, initErr.Thread)
	assert.ErrorIs(t, err, pinErr)
}

func TestBuild_ThreadStartPanicIsFatal(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt, err := Build(Config{
		WorkerThreads: 2,
		OnThreadStart: func(string) error { panic("no such cpu") },
	}, zap.NewNop())

	assert.Nil(t, rt)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Contains(t, err.Error(), "no such cpu")
}

func TestSubmit_RunsEveryTask(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newRuntime(t, Config{WorkerThreads: 4, QueueSize: 1024})

	const n = 500
	var ran atomic.Int64
	for i := 0; i < n; i++ {
		require.NoError(t, rt.Submit(func(context.Context) { ran.Add(1) }))
	}

	require.True(t, rt.Shutdown(0))
	assert.EqualValues(t, n, ran.Load())

	stats := rt.Stats()
	assert.EqualValues(t, n, stats.Submitted)
	assert.EqualValues(t, n, stats.Completed)
	assert.Zero(t, stats.Rejected)
}

func TestSubmit_QueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newRuntime(t, Config{WorkerThreads: 1, QueueSize: 1})

	running := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, rt.Submit(func(context.Context) {
		close(running)
		<-release
	}))
	<-running

	require.NoError(t, rt.Submit(func(context.Context) {}))
	assert.ErrorIs(t, rt.Submit(func(context.Context) {}), ErrQueueFull)
	assert.EqualValues(t, 1, rt.Stats().Rejected)
	assert.Equal(t, 1, rt.Stats().QueueDepth)

	close(release)
	assert.True(t, rt.Shutdown(time.Second))
}

func TestSubmit_AfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newRuntime(t, Config{WorkerThreads: 1})
	rt.Shutdown(time.Second)

	assert.ErrorIs(t, rt.Submit(func(context.Context) {}), ErrShuttingDown)
}

func TestShutdown_DrainsQueuedTasks(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newRuntime(t, Config{WorkerThreads: 2, QueueSize: 64})

	var ran atomic.Int64
	for i := 0; i < 32; i++ {
		require.NoError(t, rt.Submit(func(context.Context) {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		}))
	}

	assert.True(t, rt.Shutdown(5*time.Second))
	assert.EqualValues(t, 32, ran.Load())
}

func TestShutdown_GracePeriodBoundsWait(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newRuntime(t, Config{WorkerThreads: 1})

	running := make(chan struct{})
	var cancelled atomic.Bool
	require.NoError(t, rt.Submit(func(ctx context.Context) {
		close(running)
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			cancelled.Store(true)
		}
	}))
	<-running

	grace := 200 * time.Millisecond
	start := time.Now()
	drained := rt.Shutdown(grace)
	elapsed := time.Since(start)

	assert.False(t, drained)
	assert.GreaterOrEqual(t, elapsed, grace)
	assert.Less(t, elapsed, grace+time.Second, "shutdown must not wait for the 5s task")
	assert.Eventually(t, cancelled.Load, time.Second, 10*time.Millisecond)
}

func TestShutdown_Twice(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newRuntime(t, Config{WorkerThreads: 1})
	assert.True(t, rt.Shutdown(time.Second))
	assert.True(t, rt.Shutdown(time.Second))
}

func TestRun_PanicIsRecovered(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := newRuntime(t, Config{WorkerThreads: 1, QueueSize: 8})

	var after atomic.Bool
	require.NoError(t, rt.Submit(func(context.Context) { panic("boom") }))
	require.NoError(t, rt.Submit(func(context.Context) { after.Store(true) }))

	require.True(t, rt.Shutdown(time.Second))
	assert.True(t, after.Load())
	assert.EqualValues(t, 1, rt.Stats().Panicked)
}

func BenchmarkSubmit(b *testing.B) {
	rt, err := Build(Config{WorkerThreads: 4, QueueSize: 1 << 20}, zap.NewNop())
	if err != nil {
		b.Fatal(err)
	}
	defer rt.Shutdown(0)

	task := func(context.Context) {}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rt.Submit(task)
	}
}
