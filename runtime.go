package cairngo

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var errBridgeClosed = errors.New("runtime bridge closed")

// workerPool runs engine calls on a fixed set of goroutines so bursts of
// boundary calls do not spawn unbounded goroutines.
type workerPool struct {
	numWorkers int
	workCh     chan func()
	stopCh     chan struct{}
	wg         sync.WaitGroup
	closed     atomic.Bool
	submitMu   sync.RWMutex
}

func newWorkerPool(numWorkers int) *workerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	wp := &workerPool{
		numWorkers: numWorkers,
		workCh:     make(chan func(), numWorkers*2),
		stopCh:     make(chan struct{}),
	}

	wp.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *workerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.stopCh:
			// Drain remaining work before exiting
			for {
				select {
				case task, ok := <-wp.workCh:
					if !ok {
						return
					}
					task()
				default:
					return
				}
			}
		case task, ok := <-wp.workCh:
			if !ok {
				return
			}
			task()
		}
	}
}

// Submit enqueues a task and returns once it is accepted.
func (wp *workerPool) Submit(ctx context.Context, task func()) error {
	wp.submitMu.RLock()
	defer wp.submitMu.RUnlock()

	if wp.closed.Load() {
		return errBridgeClosed
	}

	select {
	case wp.workCh <- task:
		return nil
	case <-wp.stopCh:
		return errBridgeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the worker pool gracefully.
func (wp *workerPool) Close() {
	if !wp.closed.CompareAndSwap(false, true) {
		return
	}

	wp.submitMu.Lock()
	close(wp.stopCh)
	close(wp.workCh)
	wp.submitMu.Unlock()

	wp.wg.Wait()
}

// bridge returns the process-wide execution context for engine calls.
// It is created once on first use and never torn down: handles the caller
// still holds must stay serviceable for the process lifetime.
var bridge = sync.OnceValue(func() *workerPool {
	return newWorkerPool(0)
})

// run executes fn on the bridge and blocks until it completes. The boundary
// is synchronous from the outside; no cancellation or timeout applies. A
// panic inside fn is contained to this call and surfaces as a *FaultError,
// leaving the process and all other handles usable.
func run[T any](c *Connection, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx := context.Background()

	if err := c.res.AcquireCall(ctx); err != nil {
		return zero, err
	}
	defer c.res.ReleaseCall()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)

	submit := func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.LogFault(ctx, op, r, debug.Stack())
				done <- outcome{err: &FaultError{Op: op, Recovered: r}}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{v: v, err: err}
	}
	if err := bridge().Submit(ctx, submit); err != nil {
		return zero, err
	}

	out := <-done
	return out.v, out.err
}
