package timeline

import (
	"context"
	"errors"
	"time"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// Job is one scrape request waiting for a pool worker.
type Job struct {
	ID        string
	URL       string
	Submitted time.Time
	// Done is closed once the requester stops waiting for the reply.
	Done <-chan struct{}
	// Reply receives exactly one JobResult. It must be buffered.
	Reply chan<- JobResult
}

// JobResult is the terminal outcome of a Job.
type JobResult struct {
	Result ScrapeResult
	Err    error
}

// ErrQueueClosed is returned by a Queue that was shut down.
var ErrQueueClosed = errors.New("queue closed")

// Queue transports jobs from the dispatcher to pool workers.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
	Len() int
}

// Scraper resolves a target URL to exactly one ScrapeResult.
type Scraper interface {
	Run(ctx context.Context, targetURL string) (ScrapeResult, error)
}

// Limiter paces work against a target.
type Limiter interface {
	Wait(ctx context.Context, targetURL string) error
}
