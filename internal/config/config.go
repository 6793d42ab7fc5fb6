// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/timeline-scraper/internal/browser"
	"github.com/JakeFAU/timeline-scraper/internal/controller"
	"github.com/JakeFAU/timeline-scraper/internal/dispatcher"
	"github.com/JakeFAU/timeline-scraper/internal/extract"
	"github.com/JakeFAU/timeline-scraper/internal/orchestrator"
	"github.com/JakeFAU/timeline-scraper/internal/scrape"
)

// EnvPrefix prefixes every environment override, e.g. SCRAPER_POOL_SIZE.
const EnvPrefix = "SCRAPER"

// PathEnv names the environment variable holding the config file path. The
// server passes it on to worker processes.
const PathEnv = EnvPrefix + "_CONFIG"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Scrape     ScrapeConfig     `mapstructure:"scrape"`
	Extract    ExtractConfig    `mapstructure:"extract"`
	Controller ControllerConfig `mapstructure:"controller"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Pool       PoolConfig       `mapstructure:"pool"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// AllowedHosts are accepted as target hosts along with their subdomains.
	AllowedHosts      []string      `mapstructure:"allowed_hosts"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ScrapeConfig sizes the batch a scrape returns.
type ScrapeConfig struct {
	MaxPosts int `mapstructure:"max_posts"`
}

// ExtractConfig holds the exclusion policy and selector overrides.
type ExtractConfig struct {
	ExcludePinned   bool          `mapstructure:"exclude_pinned"`
	PinnedMarkers   []string      `mapstructure:"pinned_markers"`
	RecencyFilter   bool          `mapstructure:"recency_filter"`
	FreshnessCutoff time.Duration `mapstructure:"freshness_cutoff"`
	RecentWindow    time.Duration `mapstructure:"recent_window"`
	PermalinkBase   string        `mapstructure:"permalink_base"`
	// Strategies replaces the default strategy list of the named fields.
	Strategies map[string][]extract.Strategy `mapstructure:"strategies"`
}

// ControllerConfig tunes the load, scroll and retry loop.
type ControllerConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BackoffBase     time.Duration `mapstructure:"backoff_base"`
	BackoffMax      time.Duration `mapstructure:"backoff_max"`
	InitialSettle   time.Duration `mapstructure:"initial_settle"`
	SelectorTimeout time.Duration `mapstructure:"selector_timeout"`
	Selectors       []string      `mapstructure:"selectors"`
	ScrollSteps     int           `mapstructure:"scroll_steps"`
	ScrollSettle    time.Duration `mapstructure:"scroll_settle"`
	MinContainers   int           `mapstructure:"min_containers"`
	CacheBust       bool          `mapstructure:"cache_bust"`
}

// BrowserConfig configures the headless Chrome session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	ExecPath          string        `mapstructure:"exec_path"`
	NoSandbox         bool          `mapstructure:"no_sandbox"`
	WindowWidth       int           `mapstructure:"window_width"`
	WindowHeight      int           `mapstructure:"window_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	UserAgents        []string      `mapstructure:"user_agents"`
	AcceptLanguage    string        `mapstructure:"accept_language"`
	Stealth           bool          `mapstructure:"stealth"`
}

// WorkerConfig describes how worker processes are spawned.
type WorkerConfig struct {
	Command        string        `mapstructure:"command"`
	Args           []string      `mapstructure:"args"`
	Timeout        time.Duration `mapstructure:"timeout"`
	KillGrace      time.Duration `mapstructure:"kill_grace"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes"`
}

// PoolConfig bounds concurrent worker processes.
type PoolConfig struct {
	Size           int           `mapstructure:"size"`
	QueueDepth     int           `mapstructure:"queue_depth"`
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout"`
	// RateLimitRPS paces spawns per target host; zero disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Load builds a Config from disk/environment. An empty path falls back to
// SCRAPER_CONFIG; with neither, defaults and environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

	setDefaults(v)

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_hosts", []string{"x.com", "twitter.com"})
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("scrape.max_posts", scrape.DefaultMaxPosts)

	policy := extract.DefaultPolicy()
	v.SetDefault("extract.exclude_pinned", policy.ExcludePinned)
	v.SetDefault("extract.pinned_markers", policy.PinnedMarkers)
	v.SetDefault("extract.recency_filter", policy.RecencyFilter)
	v.SetDefault("extract.freshness_cutoff", policy.FreshnessCutoff)
	v.SetDefault("extract.recent_window", policy.RecentWindow)
	v.SetDefault("extract.permalink_base", policy.PermalinkBase)

	ctl := controller.DefaultConfig()
	v.SetDefault("controller.max_attempts", ctl.MaxAttempts)
	v.SetDefault("controller.backoff_base", ctl.BackoffBase)
	v.SetDefault("controller.backoff_max", ctl.BackoffMax)
	v.SetDefault("controller.initial_settle", ctl.InitialSettle)
	v.SetDefault("controller.selector_timeout", ctl.SelectorTimeout)
	v.SetDefault("controller.selectors", ctl.Selectors)
	v.SetDefault("controller.scroll_steps", ctl.ScrollSteps)
	v.SetDefault("controller.scroll_settle", ctl.ScrollSettle)
	v.SetDefault("controller.min_containers", ctl.MinContainers)
	v.SetDefault("controller.cache_bust", ctl.CacheBust)

	br := browser.DefaultConfig()
	v.SetDefault("browser.headless", br.Headless)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.no_sandbox", br.NoSandbox)
	v.SetDefault("browser.window_width", br.WindowWidth)
	v.SetDefault("browser.window_height", br.WindowHeight)
	v.SetDefault("browser.navigation_timeout", br.NavigationTimeout)
	v.SetDefault("browser.user_agents", br.UserAgents)
	v.SetDefault("browser.accept_language", br.AcceptLanguage)
	v.SetDefault("browser.stealth", br.Stealth)

	wk := orchestrator.DefaultConfig()
	v.SetDefault("worker.command", "")
	v.SetDefault("worker.args", wk.Args)
	v.SetDefault("worker.timeout", wk.Timeout)
	v.SetDefault("worker.kill_grace", wk.KillGrace)
	v.SetDefault("worker.max_output_bytes", wk.MaxOutputBytes)

	v.SetDefault("pool.size", 2)
	v.SetDefault("pool.queue_depth", 16)
	v.SetDefault("pool.enqueue_timeout", dispatcher.DefaultEnqueueTimeout)
	v.SetDefault("pool.rate_limit_rps", 0)
	v.SetDefault("pool.rate_limit_burst", 1)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Server.AllowedHosts) == 0 {
		return fmt.Errorf("server.allowed_hosts must list at least one host")
	}
	if c.Scrape.MaxPosts <= 0 {
		return fmt.Errorf("scrape.max_posts must be > 0")
	}
	if err := c.ControllerConfig().Validate(); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	if _, err := extract.DefaultStrategies().WithOverrides(c.Extract.Strategies); err != nil {
		return fmt.Errorf("extract.strategies: %w", err)
	}
	if c.Extract.FreshnessCutoff < 0 || c.Extract.RecentWindow < 0 {
		return fmt.Errorf("extract windows must not be negative")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be > 0")
	}
	if c.Worker.Timeout <= 0 {
		return fmt.Errorf("worker.timeout must be > 0")
	}
	if c.Worker.MaxOutputBytes <= 0 {
		return fmt.Errorf("worker.max_output_bytes must be > 0")
	}
	if c.Pool.Size <= 0 {
		return fmt.Errorf("pool.size must be > 0")
	}
	if c.Pool.QueueDepth < 0 {
		return fmt.Errorf("pool.queue_depth must not be negative")
	}
	if c.Pool.RateLimitRPS < 0 {
		return fmt.Errorf("pool.rate_limit_rps must not be negative")
	}
	return nil
}

// ControllerConfig converts the controller section.
func (c Config) ControllerConfig() controller.Config {
	ctl := c.Controller
	return controller.Config{
		MaxAttempts:     ctl.MaxAttempts,
		BackoffBase:     ctl.BackoffBase,
		BackoffMax:      ctl.BackoffMax,
		InitialSettle:   ctl.InitialSettle,
		SelectorTimeout: ctl.SelectorTimeout,
		Selectors:       ctl.Selectors,
		ScrollSteps:     ctl.ScrollSteps,
		ScrollSettle:    ctl.ScrollSettle,
		MinContainers:   ctl.MinContainers,
		CacheBust:       ctl.CacheBust,
	}
}

// ExtractPolicy converts the exclusion settings.
func (c Config) ExtractPolicy() extract.Policy {
	return extract.Policy{
		ExcludePinned:   c.Extract.ExcludePinned,
		PinnedMarkers:   c.Extract.PinnedMarkers,
		RecencyFilter:   c.Extract.RecencyFilter,
		FreshnessCutoff: c.Extract.FreshnessCutoff,
		RecentWindow:    c.Extract.RecentWindow,
		PermalinkBase:   c.Extract.PermalinkBase,
	}
}

// FieldStrategies applies the configured overrides to the default tables.
func (c Config) FieldStrategies() (extract.FieldStrategies, error) {
	fields, err := extract.DefaultStrategies().WithOverrides(c.Extract.Strategies)
	if err != nil {
		return extract.FieldStrategies{}, fmt.Errorf("extract.strategies: %w", err)
	}
	return fields, nil
}

// BrowserConfig converts the browser section.
func (c Config) BrowserConfig() browser.Config {
	b := c.Browser
	return browser.Config{
		Headless:          b.Headless,
		ExecPath:          b.ExecPath,
		NoSandbox:         b.NoSandbox,
		WindowWidth:       b.WindowWidth,
		WindowHeight:      b.WindowHeight,
		NavigationTimeout: b.NavigationTimeout,
		UserAgents:        b.UserAgents,
		AcceptLanguage:    b.AcceptLanguage,
		Stealth:           b.Stealth,
	}
}

// OrchestratorConfig converts the worker section. configPath, when set, is
// handed to every worker through SCRAPER_CONFIG.
func (c Config) OrchestratorConfig(configPath string) orchestrator.Config {
	var env []string
	if configPath != "" {
		env = append(env, PathEnv+"="+configPath)
	}
	return orchestrator.Config{
		Command:        c.Worker.Command,
		Args:           c.Worker.Args,
		Env:            env,
		Timeout:        c.Worker.Timeout,
		KillGrace:      c.Worker.KillGrace,
		MaxOutputBytes: c.Worker.MaxOutputBytes,
	}
}
