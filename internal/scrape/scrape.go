// Package scrape is the worker-process side of a scrape: it runs the
// controller against one target and emits exactly one result envelope.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/controller"
	"github.com/JakeFAU/timeline-scraper/internal/extract"
	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

// DefaultMaxPosts is the batch size when none is configured.
const DefaultMaxPosts = 10

// SessionFactory opens a browser session and returns a function that
// releases it.
type SessionFactory func(ctx context.Context) (controller.Session, func(), error)

// Runner wires a session, the controller and the extraction engine together.
type Runner struct {
	maxPosts   int
	controlCfg controller.Config
	engine     *extract.Engine
	sessions   SessionFactory
	clock      timeline.Clock
	logger     *zap.Logger
	opts       []controller.Option
}

// NewRunner builds a Runner. maxPosts <= 0 selects DefaultMaxPosts.
func NewRunner(maxPosts int, controlCfg controller.Config, engine *extract.Engine, sessions SessionFactory, clock timeline.Clock, logger *zap.Logger, opts ...controller.Option) *Runner {
	if maxPosts <= 0 {
		maxPosts = DefaultMaxPosts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		maxPosts:   maxPosts,
		controlCfg: controlCfg,
		engine:     engine,
		sessions:   sessions,
		clock:      clock,
		logger:     logger,
		opts:       opts,
	}
}

// Run scrapes rawURL and always returns an envelope. The envelope's url is
// rawURL as given, before normalization.
func (r *Runner) Run(ctx context.Context, rawURL string) (result timeline.ScrapeResult) {
	start := r.clock.Now()
	meta := &timeline.Metadata{}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("scrape panicked", zap.Any("panic", rec))
			result = timeline.NewFailure(rawURL, fmt.Errorf("scrape panicked: %v", rec), r.clock.Now(), meta)
		}
	}()

	target, err := NormalizeURL(rawURL)
	if err != nil {
		return timeline.NewFailure(rawURL, err, r.clock.Now(), nil)
	}
	logger := r.logger.With(zap.String("target", target))

	session, release, err := r.sessions(ctx)
	if err != nil {
		logger.Error("browser session failed to start", zap.Error(err))
		return timeline.NewFailure(rawURL, fmt.Errorf("start browser session: %w", err), r.clock.Now(), nil)
	}
	defer release()

	ctrl, err := controller.New(r.controlCfg, session, r.engine, r.clock, logger.Named("controller"), r.opts...)
	if err != nil {
		return timeline.NewFailure(rawURL, err, r.clock.Now(), nil)
	}

	out, err := ctrl.Run(ctx, target, r.maxPosts)
	*meta = out.Metadata
	end := r.clock.Now()
	meta.DurationMs = end.Sub(start).Milliseconds()
	if err != nil {
		logger.Warn("scrape failed", zap.Error(err), zap.Int("attempts", meta.Attempts))
		return timeline.NewFailure(rawURL, err, end, meta)
	}
	logger.Info("scrape finished", zap.Int("posts", len(out.Posts)), zap.Int("attempts", meta.Attempts))
	return timeline.NewSuccess(rawURL, out.Posts, end, meta)
}

// Emit writes res to w as a single JSON document followed by a newline.
func Emit(w io.Writer, res timeline.ScrapeResult) error {
	if err := json.NewEncoder(w).Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// NormalizeURL canonicalizes a profile URL: https scheme when missing,
// lowercase host, no query, fragment or trailing slash.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", timeline.ErrValidation)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", timeline.ErrValidation, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", timeline.ErrValidation, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: url has no host", timeline.ErrValidation)
	}
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String(), nil
}
