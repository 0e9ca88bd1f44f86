package driven

import "context"

// Task is a unit of background work.
type Task struct {
	// Name describes the task in logs.
	Name string

	// Run performs the work. A returned error is logged by the queue.
	Run func(ctx context.Context) error
}

// TaskQueue dispatches tasks to background workers.
type TaskQueue interface {
	// Submit schedules a task and returns without waiting for it.
	Submit(ctx context.Context, task Task) error

	// Drain blocks until every submitted task has finished or ctx is done.
	Drain(ctx context.Context) error

	// Close stops accepting tasks and releases the workers.
	Close() error
}
