package controller

import (
	"context"
	"time"

	"github.com/JakeFAU/timeline-scraper/internal/extract"
)

// Session is the browser surface the controller drives. Implementations are
// used by a single goroutine.
type Session interface {
	// Navigate loads url and returns the URL the page settled on.
	Navigate(ctx context.Context, url string) (string, error)
	// WaitForSelector blocks until selector matches or timeout elapses.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Scroll advances the page to trigger lazy loading.
	Scroll(ctx context.Context) error
	// Count returns how many elements currently match selector.
	Count(ctx context.Context, selector string) (int, error)
	// Containers snapshots every element matching selector.
	Containers(ctx context.Context, selector string) ([]extract.Container, error)
}
