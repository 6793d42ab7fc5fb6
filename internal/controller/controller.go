// Package controller drives a browser session through repeated load, scroll
// and extract attempts until it finds a fresh enough batch of posts.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/extract"
	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

// State names a step of the attempt state machine.
type State int

// Attempt states.
const (
	Navigating State = iota
	WaitingForContent
	Scrolling
	Evaluating
	Accepted
	Retrying
	Exhausted
)

func (s State) String() string {
	switch s {
	case Navigating:
		return "navigating"
	case WaitingForContent:
		return "waiting_for_content"
	case Scrolling:
		return "scrolling"
	case Evaluating:
		return "evaluating"
	case Accepted:
		return "accepted"
	case Retrying:
		return "retrying"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome is the accepted batch plus diagnostics about how it was found.
type Outcome struct {
	Posts    []timeline.Post
	Metadata timeline.Metadata
}

// Controller runs one attempt sequence per call to Run.
type Controller struct {
	cfg     Config
	session Session
	engine  *extract.Engine
	retry   *RetryPolicy
	clock   timeline.Clock
	logger  *zap.Logger
	sleep   func(context.Context, time.Duration) error
}

// Option customizes a Controller.
type Option func(*Controller)

// WithSleep replaces the wait used for settle delays and backoff.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Controller) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// New builds a Controller. cfg must be valid.
func New(cfg Config, session Session, engine *extract.Engine, clock timeline.Clock, logger *zap.Logger, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("controller config: %w", err)
	}
	if session == nil || engine == nil || clock == nil {
		return nil, errors.New("controller requires a session, an engine and a clock")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		cfg:     cfg,
		session: session,
		engine:  engine,
		retry:   NewRetryPolicy(cfg.MaxAttempts, cfg.BackoffBase, cfg.BackoffMax),
		clock:   clock,
		logger:  logger,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type attemptResult struct {
	batch       extract.Batch
	selector    string
	scrollSteps int
	finalURL    string
}

// Run loads target until an attempt yields a recent post or the attempt
// budget runs out. The final attempt's batch is accepted even without recent
// posts. When the final attempt fails, its error is returned and no posts are.
func (c *Controller) Run(ctx context.Context, target string, maxCount int) (Outcome, error) {
	var meta timeline.Metadata
	for attempt := 1; ; attempt++ {
		meta.Attempts = attempt
		res, err := c.attempt(ctx, target, attempt, maxCount)
		meta.Selector = res.selector
		meta.ScrollSteps = res.scrollSteps
		meta.FinalURL = res.finalURL
		meta.TotalContainers = res.batch.Seen
		meta.RecentCount = res.batch.Recent

		final := c.retry.Final(attempt)
		if err == nil && (res.batch.Recent > 0 || final) {
			c.transition(attempt, Accepted,
				zap.Int("posts", len(res.batch.Posts)),
				zap.Int("recent", res.batch.Recent),
			)
			return Outcome{Posts: res.batch.Posts, Metadata: meta}, nil
		}

		if !c.retry.ShouldRetry(err, attempt) {
			c.transition(attempt, Exhausted, zap.Error(err))
			return Outcome{Metadata: meta}, err
		}

		delay := c.retry.Backoff(attempt)
		if err != nil {
			c.transition(attempt, Retrying, zap.Error(err), zap.Duration("backoff", delay))
		} else {
			c.transition(attempt, Retrying, zap.String("reason", "no recent posts"), zap.Duration("backoff", delay))
		}
		if err := c.sleep(ctx, delay); err != nil {
			return Outcome{Metadata: meta}, err
		}
	}
}

func (c *Controller) attempt(ctx context.Context, target string, attempt, maxCount int) (attemptResult, error) {
	var res attemptResult

	c.transition(attempt, Navigating)
	finalURL, err := c.session.Navigate(ctx, c.attemptURL(target, attempt))
	if err != nil {
		return res, c.navigationError(ctx, err)
	}
	res.finalURL = finalURL
	if err := c.sleep(ctx, c.cfg.InitialSettle); err != nil {
		return res, err
	}

	c.transition(attempt, WaitingForContent)
	res.selector = c.waitForContent(ctx)
	if res.selector == "" {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, fmt.Errorf("%w: no container selector matched on %s", timeline.ErrContentNotFound, finalURL)
	}

	c.transition(attempt, Scrolling)
	steps, err := c.scroll(ctx, res.selector)
	res.scrollSteps = steps
	if err != nil {
		return res, err
	}

	c.transition(attempt, Evaluating)
	containers, err := c.session.Containers(ctx, res.selector)
	if err != nil {
		return res, c.navigationError(ctx, fmt.Errorf("snapshot containers: %w", err))
	}
	if len(containers) == 0 {
		return res, fmt.Errorf("%w: zero containers for %s", timeline.ErrContentNotFound, res.selector)
	}
	res.batch = c.engine.Extract(containers, maxCount, c.clock.Now())
	return res, nil
}

func (c *Controller) waitForContent(ctx context.Context) string {
	for _, sel := range c.cfg.Selectors {
		if ctx.Err() != nil {
			return ""
		}
		if err := c.session.WaitForSelector(ctx, sel, c.cfg.SelectorTimeout); err != nil {
			c.logger.Debug("selector did not match", zap.String("selector", sel), zap.Error(err))
			continue
		}
		return sel
	}
	return ""
}

// scroll advances the page until the step budget is spent, the container
// count stalls or the minimum target is reached. It returns the steps taken.
func (c *Controller) scroll(ctx context.Context, selector string) (int, error) {
	prev, err := c.session.Count(ctx, selector)
	if err != nil {
		return 0, c.navigationError(ctx, fmt.Errorf("count containers: %w", err))
	}
	steps := 0
	for steps < c.cfg.ScrollSteps {
		if c.cfg.MinContainers > 0 && prev >= c.cfg.MinContainers {
			break
		}
		if err := c.session.Scroll(ctx); err != nil {
			return steps, c.navigationError(ctx, fmt.Errorf("scroll: %w", err))
		}
		steps++
		if err := c.sleep(ctx, c.cfg.ScrollSettle); err != nil {
			return steps, err
		}
		n, err := c.session.Count(ctx, selector)
		if err != nil {
			return steps, c.navigationError(ctx, fmt.Errorf("count containers: %w", err))
		}
		c.logger.Debug("scrolled", zap.Int("step", steps), zap.Int("containers", n))
		if n == prev {
			break
		}
		prev = n
	}
	return steps, nil
}

// attemptURL appends a cache-busting token so each attempt bypasses edge
// caches.
func (c *Controller) attemptURL(target string, attempt int) string {
	if !c.cfg.CacheBust {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("_cb", strconv.FormatInt(c.clock.Now().UnixMilli(), 10)+"-"+strconv.Itoa(attempt))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Controller) transition(attempt int, s State, fields ...zap.Field) {
	c.logger.Info("scrape attempt",
		append([]zap.Field{zap.Int("attempt", attempt), zap.Stringer("state", s)}, fields...)...)
}

// navigationError classifies a session failure. Timeouts internal to the
// session are navigation failures and retried; cancellation of ctx is not.
func (c *Controller) navigationError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	if errors.Is(err, timeline.ErrNavigation) || errors.Is(err, timeline.ErrContentNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", timeline.ErrNavigation, err)
}
