package controller

import (
	"fmt"
	"time"
)

// Config tunes the attempt sequence.
type Config struct {
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	InitialSettle   time.Duration
	SelectorTimeout time.Duration
	Selectors       []string
	ScrollSteps     int
	ScrollSettle    time.Duration
	MinContainers   int
	CacheBust       bool
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BackoffBase:     2 * time.Second,
		BackoffMax:      10 * time.Second,
		InitialSettle:   3 * time.Second,
		SelectorTimeout: 10 * time.Second,
		Selectors: []string{
			`article[data-testid="tweet"]`,
			`article`,
			`[data-testid="tweet"]`,
			`[role="article"]`,
		},
		ScrollSteps:   3,
		ScrollSettle:  2 * time.Second,
		MinContainers: 20,
		CacheBust:     true,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if len(c.Selectors) == 0 {
		return fmt.Errorf("at least one container selector is required")
	}
	if c.SelectorTimeout <= 0 {
		return fmt.Errorf("selector timeout must be positive")
	}
	if c.ScrollSteps < 0 {
		return fmt.Errorf("scroll steps must not be negative")
	}
	if c.BackoffBase < 0 || c.BackoffMax < 0 || c.ScrollSettle < 0 || c.InitialSettle < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}
