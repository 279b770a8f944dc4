// Package executor provides the worker runtime that runs publish tasks off
// the host's calling thread.
//
// The host hands work over through Submit, which never blocks: a bounded
// queue feeds a fixed pool of workers, each locked to its own OS thread so
// CPU affinity applied at thread start sticks for the worker's lifetime.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/threadname"
)

var (
	// ErrQueueFull is returned by Submit when the task queue has no room.
	ErrQueueFull = errors.New("executor: task queue full")

	// ErrShuttingDown is returned by Submit once Shutdown has begun.
	ErrShuttingDown = errors.New("executor: runtime shutting down")
)

// Task is a unit of work. ctx is cancelled when the shutdown grace period
// runs out; long-running tasks should watch it.
type Task func(ctx context.Context)

// InitError reports a runtime that could not be constructed.
type InitError struct {
	Thread string
	Err    error
}

func (e *InitError) Error() string {
	if e.Thread == "" {
		return fmt.Sprintf("executor: build runtime: %v", e.Err)
	}
	return fmt.Sprintf("executor: start worker %s: %v", e.Thread, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Config configures a Runtime.
type Config struct {
	// WorkerThreads is the pool size. Zero means runtime.NumCPU().
	WorkerThreads int

	// QueueSize bounds the number of queued, not yet running tasks.
	QueueSize int

	// ThreadName names each worker. Defaults to threadname.Next.
	ThreadName func() string

	// OnThreadStart runs on every worker's locked OS thread before it takes
	// any task. An error fails Build.
	OnThreadStart func(name string) error
}

// Runtime is a fixed pool of workers draining a bounded task queue.
// It is built once and shut down once.
type Runtime struct {
	logger *zap.Logger
	tasks  chan Task

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	workers []string

	submitted atomic.Uint64
	rejected  atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64
}

// Build starts the worker pool and waits until every worker has run its
// thread-start hook. If any hook fails, the workers already started are
// stopped and an *InitError is returned.
func Build(cfg Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WorkerThreads < 0 {
		return nil, &InitError{Err: fmt.Errorf("worker_threads must be >= 0, got %d", cfg.WorkerThreads)}
	}
	if cfg.WorkerThreads == 0 {
		cfg.WorkerThreads = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = constants.DefaultQueueSize
	}
	if cfg.ThreadName == nil {
		cfg.ThreadName = threadname.Next
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		logger:  logger,
		tasks:   make(chan Task, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		workers: make([]string, 0, cfg.WorkerThreads),
	}

	started := make(chan error, cfg.WorkerThreads)
	for i := 0; i < cfg.WorkerThreads; i++ {
		name := cfg.ThreadName()
		rt.workers = append(rt.workers, name)
		rt.wg.Add(1)
		go rt.worker(name, cfg.OnThreadStart, started)
	}

	var initErr error
	for i := 0; i < cfg.WorkerThreads; i++ {
		if err := <-started; err != nil && initErr == nil {
			initErr = err
		}
	}
	if initErr != nil {
		rt.abort()
		logger.Error("Runtime build failed", zap.Error(initErr))
		return nil, initErr
	}

	logger.Info("Runtime started",
		zap.Int("workers", cfg.WorkerThreads),
		zap.Int("queue_size", cfg.QueueSize))
	return rt, nil
}

// worker runs on its own locked OS thread. It never unlocks, so a pinned
// thread is discarded instead of returning to the scheduler's pool.
func (rt *Runtime) worker(name string, onStart func(string) error, started chan<- error) {
	defer rt.wg.Done()
	runtime.LockOSThread()

	if err := runHook(onStart, name); err != nil {
		started <- &InitError{Thread: name, Err: err}
		return
	}
	started <- nil

	log := rt.logger.With(zap.String("thread", name))
	pprof.Do(rt.ctx, pprof.Labels("thread", name), func(ctx context.Context) {
		rt.loop(ctx, log)
	})
	log.Debug("Worker stopped")
}

// runHook calls the thread-start hook, converting a panic into an error.
func runHook(onStart func(string) error, name string) (err error) {
	if onStart == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("thread start hook panicked: %v", r)
		}
	}()
	return onStart(name)
}

func (rt *Runtime) loop(ctx context.Context, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-rt.tasks:
			if !ok || ctx.Err() != nil {
				return
			}
			rt.run(ctx, log, task)
		}
	}
}

func (rt *Runtime) run(ctx context.Context, log *zap.Logger, task Task) {
	defer func() {
		if r := recover(); r != nil {
			rt.panicked.Add(1)
			log.Error("Task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	task(ctx)
	rt.completed.Add(1)
}

// abort tears down a partially built runtime.
func (rt *Runtime) abort() {
	rt.mu.Lock()
	rt.closed = true
	close(rt.tasks)
	rt.mu.Unlock()
	rt.cancel()
	rt.wg.Wait()
}

// Submit enqueues task without blocking.
func (rt *Runtime) Submit(task Task) error {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	if rt.closed {
		rt.rejected.Add(1)
		return ErrShuttingDown
	}

	select {
	case rt.tasks <- task:
		rt.submitted.Add(1)
		return nil
	default:
		rt.rejected.Add(1)
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits up to grace for queued and running tasks
// to finish. When grace runs out the task context is cancelled and any
// remaining work is abandoned. grace <= 0 waits without limit.
//
// It reports whether the runtime drained completely. Calling it more than
// once is harmless but the owner is expected to call it exactly once.
func (rt *Runtime) Shutdown(grace time.Duration) bool {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return true
	}
	rt.closed = true
	close(rt.tasks)
	rt.mu.Unlock()

	pending := len(rt.tasks)
	rt.logger.Info("Runtime shutting down",
		zap.Duration("grace_period", grace),
		zap.Int("queued", pending))

	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()

	var timeout <-chan time.Time
	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-done:
		rt.cancel()
		rt.logger.Info("Runtime stopped",
			zap.Uint64("completed", rt.completed.Load()),
			zap.Uint64("rejected", rt.rejected.Load()))
		return true
	case <-timeout:
		rt.cancel()
		rt.logger.Warn("Runtime shutdown timed out, abandoning remaining tasks",
			zap.Duration("grace_period", grace),
			zap.Int("abandoned_queued", len(rt.tasks)),
			zap.Uint64("completed", rt.completed.Load()))
		return false
	}
}

// Workers returns the names of the pool's worker threads.
func (rt *Runtime) Workers() []string {
	out := make([]string, len(rt.workers))
	copy(out, rt.workers)
	return out
}

// Stats is a snapshot of runtime counters.
type Stats struct {
	Workers    int
	QueueDepth int
	Submitted  uint64
	Rejected   uint64
	Completed  uint64
	Panicked   uint64
}

// Stats returns a snapshot of runtime metrics.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Workers:    len(rt.workers),
		QueueDepth: len(rt.tasks),
		Submitted:  rt.submitted.Load(),
		Rejected:   rt.rejected.Load(),
		Completed:  rt.completed.Load(),
		Panicked:   rt.panicked.Load(),
	}
}
