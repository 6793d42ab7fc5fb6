// Package orchestrator runs each scrape in its own worker process, bounded by
// a hard wall-clock timeout, and turns whatever the worker left behind into
// exactly one ScrapeResult.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

// Config describes how worker processes are launched.
type Config struct {
	// Command is the worker executable. Empty means the running binary.
	Command string
	// Args precede "--" and the target URL on the worker command line.
	Args []string
	// Env is appended to the orchestrator's own environment.
	Env            []string
	Timeout        time.Duration
	KillGrace      time.Duration
	MaxOutputBytes int
}

// DefaultConfig runs "<self> scrape <url>" with a two minute limit.
func DefaultConfig() Config {
	return Config{
		Args:           []string{"scrape"},
		Timeout:        120 * time.Second,
		KillGrace:      5 * time.Second,
		MaxOutputBytes: 10 << 20,
	}
}

// Runner spawns worker processes.
type Runner struct {
	cfg    Config
	clock  timeline.Clock
	logger *zap.Logger
}

// New validates cfg and resolves the worker command.
func New(cfg Config, clock timeline.Clock, logger *zap.Logger) (*Runner, error) {
	if cfg.Timeout <= 0 {
		return nil, errors.New("worker timeout must be positive")
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultConfig().MaxOutputBytes
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultConfig().KillGrace
	}
	if cfg.Command == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve worker executable: %w", err)
		}
		cfg.Command = self
	}
	if clock == nil {
		return nil, errors.New("orchestrator requires a clock")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, clock: clock, logger: logger}, nil
}

// Timeout is the hard limit applied to every worker.
func (r *Runner) Timeout() time.Duration { return r.cfg.Timeout }

// Run scrapes targetURL in a new worker process. It always returns a result
// whose url is targetURL. The error is nil only for a successful envelope;
// otherwise it carries the outcome kind: ErrWorkerTimeout, ErrEnvelopeParse,
// ErrWorkerExit or ErrWorkerFailed.
func (r *Runner) Run(ctx context.Context, targetURL string) (timeline.ScrapeResult, error) {
	logger := r.logger.With(zap.String("url", targetURL))
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	// "--" keeps a target that starts with a dash from being read as a flag.
	args := append(append([]string(nil), r.cfg.Args...), "--", targetURL)
	cmd := exec.CommandContext(runCtx, r.cfg.Command, args...)
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	cmd.WaitDelay = r.cfg.KillGrace
	isolate(cmd)

	stdout := &boundedBuffer{limit: r.cfg.MaxOutputBytes}
	stderr := newLineLogger(logger.Named("worker"))
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	stderr.Flush()
	elapsed := time.Since(start)

	if cmd.Process != nil {
		logger = logger.With(zap.Int("pid", cmd.Process.Pid))
	}
	logger = logger.With(zap.Duration("elapsed", elapsed))

	if errors.Is(runErr, exec.ErrWaitDelay) {
		logger.Warn("worker exited but left its output open", zap.Error(runErr))
		runErr = nil
	}
	if runErr != nil {
		switch {
		case ctx.Err() != nil:
			err := fmt.Errorf("scrape canceled: %w", ctx.Err())
			logger.Warn("worker canceled", zap.Error(err))
			return r.failure(targetURL, err), err
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			err := fmt.Errorf("%w after %s", timeline.ErrWorkerTimeout, r.cfg.Timeout)
			logger.Warn("worker killed", zap.Error(err))
			return r.failure(targetURL, err), err
		}
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		err := fmt.Errorf("%w: %v", timeline.ErrWorkerExit, runErr)
		logger.Error("worker could not run", zap.Error(err))
		return r.failure(targetURL, err), err
	}

	if stdout.truncated {
		err := fmt.Errorf("%w: output exceeded %d bytes", timeline.ErrEnvelopeParse, r.cfg.MaxOutputBytes)
		logger.Error("worker output rejected", zap.Error(err))
		return r.failure(targetURL, err), err
	}
	if exitErr != nil && len(stdout.Bytes()) == 0 {
		err := fmt.Errorf("%w: exit code %d", timeline.ErrWorkerExit, exitErr.ExitCode())
		logger.Error("worker exited without output", zap.Error(err))
		return r.failure(targetURL, err), err
	}

	res, err := parseEnvelope(stdout.Bytes())
	if err != nil {
		logger.Error("worker output rejected", zap.Error(err), zap.Int("bytes", len(stdout.Bytes())))
		return r.failure(targetURL, err), err
	}
	res.URL = targetURL
	if !res.Success {
		err := workerFailure(res)
		logger.Info("worker reported failure", zap.String("kind", res.ErrorKind), zap.String("error", res.Error))
		return res, err
	}
	logger.Info("worker finished", zap.Int("posts", res.TweetsCount))
	return res, nil
}

func (r *Runner) failure(targetURL string, err error) timeline.ScrapeResult {
	return timeline.NewFailure(targetURL, err, r.clock.Now(), nil)
}

// reportedError is a failure the worker described in its own envelope. It
// matches ErrWorkerFailed and, when known, the reported kind.
type reportedError struct {
	kind error
	msg  string
}

func (e *reportedError) Error() string {
	return timeline.ErrWorkerFailed.Error() + ": " + e.msg
}

func (e *reportedError) Unwrap() []error {
	if e.kind == nil {
		return []error{timeline.ErrWorkerFailed}
	}
	return []error{timeline.ErrWorkerFailed, e.kind}
}

func workerFailure(res timeline.ScrapeResult) error {
	return &reportedError{kind: timeline.ErrorForKind(res.ErrorKind), msg: res.Error}
}
