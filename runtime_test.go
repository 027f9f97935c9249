package cairngo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool(t *testing.T) {
	t.Run("RunsSubmittedTasks", func(t *testing.T) {
		wp := newWorkerPool(2)
		defer wp.Close()

		var count atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			err := wp.Submit(context.Background(), func() {
				defer wg.Done()
				count.Add(1)
			})
			require.NoError(t, err)
		}
		wg.Wait()

		assert.Equal(t, int64(50), count.Load())
	})

	t.Run("SubmitAfterCloseFails", func(t *testing.T) {
		wp := newWorkerPool(1)
		wp.Close()

		err := wp.Submit(context.Background(), func() {})
		require.ErrorIs(t, err, errBridgeClosed)
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		wp := newWorkerPool(1)
		wp.Close()
		wp.Close()
	})

	t.Run("CloseDrainsAcceptedWork", func(t *testing.T) {
		wp := newWorkerPool(1)

		release := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		err := wp.Submit(context.Background(), func() {
			defer wg.Done()
			<-release
		})
		require.NoError(t, err)

		var ran atomic.Bool
		err = wp.Submit(context.Background(), func() { ran.Store(true) })
		require.NoError(t, err)

		close(release)
		wg.Wait()
		wp.Close()

		assert.True(t, ran.Load(), "accepted work must run before Close returns")
	})

	t.Run("SubmitHonorsContext", func(t *testing.T) {
		wp := newWorkerPool(1)
		defer wp.Close()

		// Saturate the worker and the queue so Submit has to wait.
		release := make(chan struct{})
		defer close(release)
		require.NoError(t, wp.Submit(context.Background(), func() { <-release }))
		for i := 0; i < cap(wp.workCh); i++ {
			require.NoError(t, wp.Submit(context.Background(), func() {}))
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := wp.Submit(ctx, func() {})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestRun(t *testing.T) {
	conn := &Connection{logger: NoopLogger(), metrics: NoopMetricsCollector{}}

	t.Run("ReturnsValue", func(t *testing.T) {
		v, err := run(conn, "noop", func(ctx context.Context) (int, error) {
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})

	t.Run("PassesErrorThrough", func(t *testing.T) {
		sentinel := errors.New("engine said no")
		_, err := run(conn, "noop", func(ctx context.Context) (int, error) {
			return 0, sentinel
		})
		require.ErrorIs(t, err, sentinel)
	})

	t.Run("ContainsPanic", func(t *testing.T) {
		v, err := run(conn, "explode", func(ctx context.Context) (int, error) {
			panic("kaboom")
		})
		assert.Zero(t, v)

		var fault *FaultError
		require.ErrorAs(t, err, &fault)
		assert.Equal(t, "explode", fault.Op)
		assert.Equal(t, "kaboom", fault.Recovered)
		assert.EqualError(t, err, "fault in explode",
			"the panic value must stay out of the message")

		// The bridge keeps servicing calls after a contained fault.
		v, err = run(conn, "noop", func(ctx context.Context) (int, error) {
			return 1, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})
}
