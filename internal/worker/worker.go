// Package worker implements the pool loop that turns queued scrape jobs into
// worker processes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/metrics"
	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

// outcomeCanceled labels jobs abandoned by their requester or by shutdown.
const outcomeCanceled = "canceled"

// Worker consumes queued jobs one at a time.
type Worker struct {
	id      int
	queue   timeline.Queue
	scraper timeline.Scraper
	limiter timeline.Limiter
	clock   timeline.Clock
	logger  *zap.Logger
}

// New constructs a Worker. limiter may be nil.
func New(
	id int,
	queue timeline.Queue,
	scraper timeline.Scraper,
	limiter timeline.Limiter,
	clock timeline.Clock,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:      id,
		queue:   queue,
		scraper: scraper,
		limiter: limiter,
		clock:   clock,
		logger:  logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming jobs until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, timeline.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		metrics.SetQueueDepth(w.queue.Len())
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job timeline.Job) {
	logger := w.logger.With(zap.String("job_id", job.ID), zap.String("url", job.URL))
	logger.Debug("dequeued job", zap.Duration("queued_for", w.clock.Now().Sub(job.Submitted)))

	if requesterGone(job) {
		logger.Info("skipping job, requester stopped waiting")
		w.reply(logger, job, w.abandoned(job, context.Canceled))
		metrics.ObserveScrape(outcomeCanceled, 0, 0)
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if job.Done != nil {
		go func() {
			select {
			case <-job.Done:
				cancel()
			case <-jobCtx.Done():
			}
		}()
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(jobCtx, job.URL); err != nil {
			logger.Info("job abandoned while rate limited", zap.Error(err))
			w.reply(logger, job, w.abandoned(job, err))
			metrics.ObserveScrape(outcomeCanceled, 0, 0)
			return
		}
	}

	metrics.IncActiveWorkers()
	start := time.Now()
	res, err := w.scraper.Run(jobCtx, job.URL)
	elapsed := time.Since(start)
	metrics.DecActiveWorkers()

	metrics.ObserveScrape(outcome(err), res.TweetsCount, elapsed)
	if err != nil {
		logger.Warn("scrape failed", zap.Error(err), zap.String("kind", res.ErrorKind), zap.Duration("elapsed", elapsed))
	} else {
		logger.Info("scrape finished", zap.Int("posts", res.TweetsCount), zap.Duration("elapsed", elapsed))
	}
	w.reply(logger, job, timeline.JobResult{Result: res, Err: err})
}

func (w *Worker) abandoned(job timeline.Job, err error) timeline.JobResult {
	err = fmt.Errorf("scrape canceled: %w", err)
	return timeline.JobResult{
		Result: timeline.NewFailure(job.URL, err, w.clock.Now(), nil),
		Err:    err,
	}
}

// reply never blocks; a requester that left has nothing to receive.
func (w *Worker) reply(logger *zap.Logger, job timeline.Job, res timeline.JobResult) {
	if job.Reply == nil {
		return
	}
	select {
	case job.Reply <- res:
	default:
		logger.Warn("reply dropped")
	}
}

func requesterGone(job timeline.Job) bool {
	if job.Done == nil {
		return false
	}
	select {
	case <-job.Done:
		return true
	default:
		return false
	}
}

func outcome(err error) string {
	if errors.Is(err, context.Canceled) {
		return outcomeCanceled
	}
	return timeline.KindOf(err)
}
