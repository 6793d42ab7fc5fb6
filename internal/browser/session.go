// Package browser implements the controller's Session on top of headless
// Chrome via chromedp.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/extract"
	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

// Config controls the browser process and per-navigation fingerprint.
type Config struct {
	Headless          bool
	ExecPath          string
	NoSandbox         bool
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	UserAgents        []string
	AcceptLanguage    string
	Stealth           bool
}

// DefaultUserAgents is the pool a navigation picks its User-Agent from.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// DefaultConfig returns headless settings sized like a desktop browser.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		NoSandbox:         true,
		WindowWidth:       1200,
		WindowHeight:      800,
		NavigationTimeout: 60 * time.Second,
		UserAgents:        DefaultUserAgents,
		AcceptLanguage:    "en-US,en;q=0.9",
		Stealth:           true,
	}
}

// Session is one browser tab. It is not safe for concurrent use.
type Session struct {
	cfg           Config
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	pick          func(n int) int
	stealthReady  bool
}

// New starts Chrome and opens a tab. The caller must Close the session.
func New(cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultConfig().NavigationTimeout
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		cfg.WindowWidth, cfg.WindowHeight = DefaultConfig().WindowWidth, DefaultConfig().WindowHeight
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Session{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		pick:          rand.IntN,
	}, nil
}

// Close shuts the tab and the browser process down.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.browserCancel()
	s.allocCancel()
}

// Navigate loads url with a freshly picked User-Agent and reports block or
// error pages as navigation failures.
func (s *Session) Navigate(ctx context.Context, url string) (string, error) {
	var (
		finalURL string
		title    string
		body     string
	)
	ua := s.userAgent()
	err := s.run(ctx, s.cfg.NavigationTimeout,
		s.setupAction(ua),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.Title(&title),
		chromedp.Evaluate(`(document.documentElement ? document.documentElement.outerHTML : '').slice(0, 50000)`, &body),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", timeline.ErrNavigation, url, err)
	}
	if kind := detectChallenge(title, body); kind != "" {
		s.logger.Warn("challenge page detected", zap.String("url", finalURL), zap.String("kind", kind))
		return finalURL, fmt.Errorf("%w: %s page at %s", timeline.ErrNavigation, kind, finalURL)
	}
	s.logger.Debug("navigated", zap.String("url", finalURL), zap.String("title", title), zap.String("user_agent", ua))
	return finalURL, nil
}

// WaitForSelector implements controller.Session.
func (s *Session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// Scroll moves the viewport down by two screen heights.
func (s *Session) Scroll(ctx context.Context) error {
	var ok bool
	if err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Evaluate(`window.scrollBy(0, window.innerHeight * 2), true`, &ok),
	); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// Count implements controller.Session.
func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	script, err := selectorScript(`document.querySelectorAll(%s).length`, selector)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Evaluate(script, &n)); err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return n, nil
}

type snapshot struct {
	HTML string  `json:"html"`
	Top  float64 `json:"top"`
}

// Containers snapshots the outer HTML and absolute vertical position of every
// element matching selector.
func (s *Session) Containers(ctx context.Context, selector string) ([]extract.Container, error) {
	script, err := selectorScript(`Array.from(document.querySelectorAll(%s)).map(el => ({
		html: el.outerHTML,
		top: el.getBoundingClientRect().top + window.scrollY,
	}))`, selector)
	if err != nil {
		return nil, err
	}
	var snaps []snapshot
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Evaluate(script, &snaps)); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", selector, err)
	}
	return toContainers(snaps, s.logger), nil
}

func toContainers(snaps []snapshot, logger *zap.Logger) []extract.Container {
	out := make([]extract.Container, 0, len(snaps))
	for i, snap := range snaps {
		c, err := extract.NewHTMLContainer(snap.HTML, snap.Top)
		if err != nil {
			logger.Debug("dropping unparsable container", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Session) setupAction(ua string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		override := emulation.SetUserAgentOverride(ua)
		if s.cfg.AcceptLanguage != "" {
			override = override.WithAcceptLanguage(s.cfg.AcceptLanguage)
			headers := network.Headers{"Accept-Language": s.cfg.AcceptLanguage}
			if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		if err := override.Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if s.cfg.Stealth && !s.stealthReady {
			if _, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx); err != nil {
				return fmt.Errorf("inject stealth script: %w", err)
			}
			s.stealthReady = true
		}
		return nil
	})
}

func (s *Session) userAgent() string {
	pool := s.cfg.UserAgents
	if len(pool) == 0 {
		pool = DefaultUserAgents
	}
	return pool[s.pick(len(pool))]
}

// run executes actions in the tab, bounded by timeout and by ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	err := chromedp.Run(taskCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return errors.Join(ctx.Err(), err)
	}
	return err
}

func selectorScript(format, selector string) (string, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("quote selector: %w", err)
	}
	return fmt.Sprintf(format, quoted), nil
}

// forwardCancel cancels the task when parent is done, until the returned stop
// function is called.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
