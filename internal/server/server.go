// Package server assembles the scraping service and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/api"
	"github.com/JakeFAU/timeline-scraper/internal/clock/system"
	"github.com/JakeFAU/timeline-scraper/internal/config"
	"github.com/JakeFAU/timeline-scraper/internal/dispatcher"
	"github.com/JakeFAU/timeline-scraper/internal/id/uuid"
	"github.com/JakeFAU/timeline-scraper/internal/metrics"
	"github.com/JakeFAU/timeline-scraper/internal/orchestrator"
	"github.com/JakeFAU/timeline-scraper/internal/policy/ratelimit"
	queueMemory "github.com/JakeFAU/timeline-scraper/internal/queue/memory"
	"github.com/JakeFAU/timeline-scraper/internal/timeline"
	"github.com/JakeFAU/timeline-scraper/internal/worker"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	dispatch  *dispatcher.Dispatcher
	queue     *queueMemory.Queue
}

// Build creates the application's dependencies. configPath is forwarded to
// worker processes so they load the same settings.
func Build(cfg config.Config, configPath, version string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	clock := system.New()
	idGen := uuid.NewGenerator()

	runner, err := orchestrator.New(cfg.OrchestratorConfig(configPath), clock, logger.Named("orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}

	var limiter timeline.Limiter
	if cfg.Pool.RateLimitRPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Pool.RateLimitRPS,
			DefaultBurst: cfg.Pool.RateLimitBurst,
		})
	}

	queue := queueMemory.NewQueue(cfg.Pool.QueueDepth)
	workers := make([]*worker.Worker, 0, cfg.Pool.Size)
	for i := range cfg.Pool.Size {
		workers = append(workers, worker.New(i+1, queue, runner, limiter, clock, logger.Named("worker")))
	}
	dispatch := dispatcher.New(queue, workers, idGen, clock, cfg.Pool.EnqueueTimeout, logger.Named("dispatcher"))

	apiServer := api.NewServer(dispatch, idGen, clock, api.Options{
		AllowedHosts: cfg.Server.AllowedHosts,
		ProfileBase:  cfg.Extract.PermalinkBase,
		Version:      version,
	}, logger.Named("api"))

	logger.Info("application built",
		zap.Int("port", cfg.Server.Port),
		zap.Int("pool_size", cfg.Pool.Size),
		zap.Int("queue_depth", cfg.Pool.QueueDepth),
		zap.Duration("worker_timeout", runner.Timeout()),
	)
	return &App{
		cfg:       cfg,
		logger:    logger,
		apiServer: apiServer,
		dispatch:  dispatch,
		queue:     queue,
	}, nil
}

// Handler exposes the HTTP routes.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP and runs the worker pool until ctx is canceled or the
// process receives SIGINT or SIGTERM. In-flight requests get the shutdown
// timeout to finish; running workers are killed after that.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCtx, cancelPool := context.WithCancel(context.Background())
	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		a.logger.Info("worker pool started", zap.Int("size", a.cfg.Pool.Size))
		a.dispatch.Run(poolCtx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("server shutdown incomplete", zap.Error(err))
	}

	cancelPool()
	<-poolDone
	a.Close()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases the queue and flushes the logger.
func (a *App) Close() {
	a.queue.Close()
	a.logger.Info("shutdown complete")
	// Sync reports EINVAL for stderr on some platforms.
	_ = a.logger.Sync()
}
