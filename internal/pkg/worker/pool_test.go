package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPool_DefaultSize(t *testing.T) {
	p, err := NewPool("test", 0)
	require.NoError(t, err)
	defer p.Release(time.Second)

	require.Equal(t, DefaultPoolSize, p.Metrics()["cap"])
}

func TestPool_Submit(t *testing.T) {
	p, err := NewPool("test", 2)
	require.NoError(t, err)
	defer p.Release(time.Second)

	var executed atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)

	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		executed.Store(true)
		wg.Done()
	}))

	wg.Wait()
	require.True(t, executed.Load())
}

func TestPool_Submit_CancelledContext(t *testing.T) {
	p, err := NewPool("test", 2)
	require.NoError(t, err)
	defer p.Release(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.Submit(ctx, func(ctx context.Context) {
		t.Error("task should not run with a cancelled context")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPool_SubmitAfterRelease(t *testing.T) {
	p, err := NewPool("test", 1)
	require.NoError(t, err)
	p.Release(time.Second)

	err = p.Submit(context.Background(), func(context.Context) {})
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestGroup_WaitsForAllTasks(t *testing.T) {
	p, err := NewPool("test", 3)
	require.NoError(t, err)
	defer p.Release(time.Second)

	var count atomic.Int32
	g := p.NewGroup()
	for i := 0; i < 20; i++ {
		require.NoError(t, g.Go(context.Background(), func(context.Context) {
			time.Sleep(time.Millisecond)
			count.Add(1)
		}))
	}
	g.Wait()

	require.EqualValues(t, 20, count.Load())
}

func TestGroup_PanickingTaskDoesNotBlockWait(t *testing.T) {
	p, err := NewPool("test", 1)
	require.NoError(t, err)
	defer p.Release(time.Second)

	g := p.NewGroup()
	require.NoError(t, g.Go(context.Background(), func(context.Context) {
		panic("boom")
	}))

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after a panicking task")
	}
}
