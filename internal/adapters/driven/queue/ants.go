// Package queue runs background tasks on a bounded goroutine pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// DefaultConcurrency is the pool size used when none is given.
const DefaultConcurrency = 4

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("task queue closed")

// Ensure Queue implements the interface.
var _ driven.TaskQueue = (*Queue)(nil)

// Queue is a driven.TaskQueue backed by an ants pool.
// Tasks run under the queue's own context, which Close cancels.
type Queue struct {
	pool   *ants.Pool
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight int
	idle     chan struct{}
}

// New creates a queue running at most concurrency tasks at once.
func New(concurrency int) (*Queue, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	return &Queue{
		pool:   pool,
		log:    logger.Component("queue"),
		ctx:    ctx,
		cancel: cancel,
		idle:   idle,
	}, nil
}

// Submit schedules task and returns immediately.
// When every worker is busy the task waits for a free one in the background.
func (q *Queue) Submit(ctx context.Context, task driven.Task) error {
	if task.Run == nil {
		return fmt.Errorf("%w: task %q has no body", domain.ErrInvalidInput, task.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if q.inflight == 0 {
		q.idle = make(chan struct{})
	}
	q.inflight++
	q.mu.Unlock()

	go q.dispatch(task)
	return nil
}

func (q *Queue) dispatch(task driven.Task) {
	err := q.pool.Submit(func() {
		defer q.done()
		q.run(task)
	})
	if err != nil {
		q.log.Error("task not scheduled", "task", task.Name, "error", err)
		q.done()
	}
}

func (q *Queue) run(task driven.Task) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("task panicked", "task", task.Name, "panic", r)
		}
	}()

	q.log.Debug("task started", "task", task.Name)
	if err := task.Run(q.ctx); err != nil {
		q.log.Error("task failed", "task", task.Name, "error", err)
		return
	}
	q.log.Debug("task finished", "task", task.Name)
}

func (q *Queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight--
	if q.inflight == 0 {
		close(q.idle)
	}
}

// Drain blocks until no task is queued or running, or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running returns the number of busy workers.
func (q *Queue) Running() int {
	return q.pool.Running()
}

// Close stops accepting tasks, cancels running ones and waits for them
// before releasing the pool.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	idle := q.idle
	q.mu.Unlock()

	q.cancel()
	<-idle
	q.pool.Release()
	return nil
}
