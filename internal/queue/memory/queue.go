// Package memory provides the in-process bounded job queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

// Queue is a bounded in-memory queue with context-aware operations. The job
// channel is never closed; done signals shutdown to blocked callers.
type Queue struct {
	ch        chan timeline.Job
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch:   make(chan timeline.Job, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a job into the queue or returns if the context ends or the
// queue is closed.
func (q *Queue) Enqueue(ctx context.Context, job timeline.Job) error {
	select {
	case <-q.done:
		return timeline.ErrQueueClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return timeline.ErrQueueClosed
	case q.ch <- job:
		return nil
	}
}

// Dequeue pops the next job, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (timeline.Job, error) {
	select {
	case <-ctx.Done():
		return timeline.Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job := <-q.ch:
		return job, nil
	case <-q.done:
		select {
		case job := <-q.ch:
			return job, nil
		default:
			return timeline.Job{}, timeline.ErrQueueClosed
		}
	}
}

// Len reports the number of jobs waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Blocked Enqueue calls return
// timeline.ErrQueueClosed at once. Queued jobs can still be dequeued; after
// that Dequeue returns timeline.ErrQueueClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
