// Package dispatcher manages worker fan-out over the job queue and hands
// each requester its job's outcome.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/metrics"
	"github.com/JakeFAU/timeline-scraper/internal/timeline"
	"github.com/JakeFAU/timeline-scraper/internal/worker"
)

// DefaultEnqueueTimeout bounds how long Submit waits for queue space.
const DefaultEnqueueTimeout = 5 * time.Second

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue          timeline.Queue
	workers        []*worker.Worker
	idGen          timeline.IDGenerator
	clock          timeline.Clock
	enqueueTimeout time.Duration
	logger         *zap.Logger
}

// New creates a Dispatcher. A non-positive enqueueTimeout uses
// DefaultEnqueueTimeout.
func New(
	queue timeline.Queue,
	workers []*worker.Worker,
	idGen timeline.IDGenerator,
	clock timeline.Clock,
	enqueueTimeout time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	if enqueueTimeout <= 0 {
		enqueueTimeout = DefaultEnqueueTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:          queue,
		workers:        workers,
		idGen:          idGen,
		clock:          clock,
		enqueueTimeout: enqueueTimeout,
		logger:         logger,
	}
}

// Run starts all workers and blocks until the context finishes and every
// worker has returned. Cancelling ctx kills running worker processes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Submit queues a scrape of targetURL and waits for its outcome. It returns
// ErrQueueFull when no queue slot frees up within the enqueue timeout. When
// ctx ends first the job is abandoned and a canceled result is returned.
func (d *Dispatcher) Submit(ctx context.Context, targetURL string) (timeline.ScrapeResult, error) {
	jobID, err := d.idGen.NewID()
	if err != nil {
		err = fmt.Errorf("generate job id: %w", err)
		return d.failure(targetURL, err), err
	}

	reply := make(chan timeline.JobResult, 1)
	done := make(chan struct{})
	defer close(done)

	job := timeline.Job{
		ID:        jobID,
		URL:       targetURL,
		Submitted: d.clock.Now(),
		Done:      done,
		Reply:     reply,
	}
	logger := d.logger.With(zap.String("job_id", jobID), zap.String("url", targetURL))

	if err := d.enqueue(ctx, job); err != nil {
		logger.Warn("job not queued", zap.Error(err))
		return d.failure(targetURL, err), err
	}
	metrics.SetQueueDepth(d.queue.Len())
	logger.Debug("job queued", zap.Int("depth", d.queue.Len()))

	select {
	case res := <-reply:
		return res.Result, res.Err
	case <-ctx.Done():
		err := fmt.Errorf("scrape canceled: %w", ctx.Err())
		logger.Info("requester stopped waiting", zap.Error(err))
		return d.failure(targetURL, err), err
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, job timeline.Job) error {
	queueCtx, cancel := context.WithTimeout(ctx, d.enqueueTimeout)
	defer cancel()
	err := d.queue.Enqueue(queueCtx, job)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("scrape canceled: %w", ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: no slot within %s", timeline.ErrQueueFull, d.enqueueTimeout)
	case errors.Is(err, timeline.ErrQueueClosed):
		return fmt.Errorf("%w: %v", timeline.ErrQueueFull, err)
	default:
		return fmt.Errorf("queue enqueue: %w", err)
	}
}

func (d *Dispatcher) failure(targetURL string, err error) timeline.ScrapeResult {
	return timeline.NewFailure(targetURL, err, d.clock.Now(), nil)
}
