// Package worker provides bounded goroutine pools.
//
// Naked goroutines are not used by pipeline code. Any fan-out (today only the
// backfill walker) goes through a Pool so concurrency against the upstream
// ATS provider stays bounded and panics are recovered and logged.
//
// Import Path: hireguard.io/atssync/internal/pkg/worker
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// DefaultPoolSize is used when a non-positive size is configured.
const DefaultPoolSize = 8

// Task is a context-aware unit of work.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// NewPool creates a named pool with at most size concurrent workers.
func NewPool(name string, size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.String("pool", name),
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	p, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Pool{pool: p, name: name}, nil
}

// Submit queues task. It returns ctx.Err() without queueing when ctx is
// already done, and skips the task if ctx is cancelled while it waits.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Release waits up to timeout for running tasks, then frees the pool.
func (p *Pool) Release(timeout time.Duration) {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		logger.Warn("Worker pool release timeout",
			zap.String("pool", p.name),
			zap.Error(err),
		)
	}
}

// Metrics returns pool occupancy.
func (p *Pool) Metrics() map[string]int {
	return map[string]int{
		"running": p.pool.Running(),
		"free":    p.pool.Free(),
		"cap":     p.pool.Cap(),
	}
}

// Group tracks a batch of tasks submitted to a Pool.
type Group struct {
	pool *Pool
	wg   sync.WaitGroup
}

// NewGroup returns a Group that submits to p.
func (p *Pool) NewGroup() *Group {
	return &Group{pool: p}
}

// Go submits task and tracks its completion. A task skipped because ctx was
// cancelled while queued still counts as done.
func (g *Group) Go(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	g.wg.Add(1)
	err := g.pool.pool.Submit(func() {
		defer g.wg.Done()
		if ctx.Err() != nil {
			return
		}
		task(ctx)
	})
	if err != nil {
		g.wg.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// Wait blocks until every submitted task has finished.
func (g *Group) Wait() {
	g.wg.Wait()
}
