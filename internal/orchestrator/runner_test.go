package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

const helperEnv = "ORCHESTRATOR_HELPER_MODE"

// TestMain lets the test binary double as a worker process.
func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(runHelper(mode, os.Args[len(os.Args)-1]))
	}
	os.Exit(m.Run())
}

func runHelper(mode, target string) int {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	emit := func(v any) {
		_ = json.NewEncoder(os.Stdout).Encode(v)
	}
	switch mode {
	case "success":
		fmt.Fprintln(os.Stderr, "starting browser")
		fmt.Fprint(os.Stderr, "partial line without newline")
		emit(timeline.NewSuccess(target, []timeline.Post{
			{SequenceIndex: 1, Permalink: "https://x.com/gopher/status/1"},
		}, now, &timeline.Metadata{Attempts: 1}))
		return 0
	case "failure":
		emit(timeline.NewFailure(target, fmt.Errorf("attempt 3: %w", timeline.ErrContentNotFound), now, nil))
		return 1
	case "malformed":
		fmt.Print(`{"success": true, "tweets": [`)
		return 0
	case "empty":
		return 0
	case "trailing":
		emit(timeline.NewSuccess(target, nil, now, nil))
		emit(timeline.NewSuccess(target, nil, now, nil))
		return 0
	case "mismatch":
		fmt.Print(`{"success":true,"url":"x","tweetsCount":2,"tweets":[{"permalink":"a"}],"scrapedAt":"now"}`)
		return 0
	case "exit":
		fmt.Fprintln(os.Stderr, "fatal: chrome crashed")
		return 3
	case "flood":
		chunk := strings.Repeat("x", 1024)
		for i := 0; i < 64; i++ {
			fmt.Print(chunk)
		}
		return 0
	case "args":
		emit(timeline.NewSuccess("normalized", []timeline.Post{
			{SequenceIndex: 1, Permalink: "https://x.com/gopher/status/1", Text: strings.Join(os.Args[1:], " ")},
		}, now, nil))
		return 0
	case "hang":
		time.Sleep(time.Minute)
		return 0
	default:
		return 2
	}
}

func newTestRunner(t *testing.T, mode string, timeout time.Duration, logger *zap.Logger) *Runner {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Command = exe
	cfg.Args = nil
	cfg.Env = []string{helperEnv + "=" + mode}
	cfg.Timeout = timeout
	cfg.KillGrace = time.Second
	cfg.MaxOutputBytes = 16 << 10
	r, err := New(cfg, timeline.ClockFunc(time.Now), logger)
	require.NoError(t, err)
	return r
}

func TestRunSuccessEnvelope(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	r := newTestRunner(t, "success", 30*time.Second, zap.New(core))

	res, err := r.Run(context.Background(), "https://x.com/gopher")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "https://x.com/gopher", res.URL)
	require.Equal(t, 1, res.TweetsCount)
	require.Equal(t, "https://x.com/gopher/status/1", res.Tweets[0].Permalink)
	require.Equal(t, 1, res.Metadata.Attempts)

	lines := logs.FilterMessage("worker output").All()
	require.Len(t, lines, 2, "stderr is forwarded line by line")
	require.Equal(t, "starting browser", lines[0].ContextMap()["line"])
	require.Equal(t, "partial line without newline", lines[1].ContextMap()["line"])
}

func TestRunPassesTargetAsRequested(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, "args", 30*time.Second, zap.NewNop())

	res, err := r.Run(context.Background(), "-X.com/gopher/?s=20")
	require.NoError(t, err)
	require.Equal(t, "-X.com/gopher/?s=20", res.URL)
	require.Equal(t, "-- -X.com/gopher/?s=20", res.Tweets[0].Text)
}

func TestRunOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode     string
		wantErr  error
		wantKind string
	}{
		{"failure", timeline.ErrWorkerFailed, timeline.KindContentNotFound},
		{"malformed", timeline.ErrEnvelopeParse, timeline.KindEnvelopeParse},
		{"empty", timeline.ErrEnvelopeParse, timeline.KindEnvelopeParse},
		{"trailing", timeline.ErrEnvelopeParse, timeline.KindEnvelopeParse},
		{"mismatch", timeline.ErrEnvelopeParse, timeline.KindEnvelopeParse},
		{"flood", timeline.ErrEnvelopeParse, timeline.KindEnvelopeParse},
		{"exit", timeline.ErrWorkerExit, timeline.KindWorkerExit},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			t.Parallel()
			r := newTestRunner(t, tt.mode, 30*time.Second, zap.NewNop())

			res, err := r.Run(context.Background(), "https://x.com/gopher")
			require.ErrorIs(t, err, tt.wantErr)
			require.False(t, res.Success)
			require.Equal(t, "https://x.com/gopher", res.URL)
			require.Equal(t, tt.wantKind, res.ErrorKind)
			require.NotEmpty(t, res.Error)
			require.NotEmpty(t, res.ScrapedAt)
			require.Zero(t, res.TweetsCount)
			require.NotNil(t, res.Tweets)
		})
	}
}

func TestRunWorkerReportedFailureKeepsKind(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, "failure", 30*time.Second, zap.NewNop())
	_, err := r.Run(context.Background(), "https://x.com/gopher")
	require.ErrorIs(t, err, timeline.ErrWorkerFailed)
	require.ErrorIs(t, err, timeline.ErrContentNotFound)
	require.False(t, errors.Is(err, timeline.ErrEnvelopeParse))
}

func TestRunTimeoutKillsWorker(t *testing.T) {
	t.Parallel()

	timeout := 300 * time.Millisecond
	r := newTestRunner(t, "hang", timeout, zap.NewNop())

	start := time.Now()
	res, err := r.Run(context.Background(), "https://x.com/gopher")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, timeline.ErrWorkerTimeout)
	require.False(t, res.Success)
	require.Equal(t, timeline.KindWorkerTimeout, res.ErrorKind)
	require.Less(t, elapsed, timeout+3*time.Second)
}

func TestRunCanceledByCaller(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, "hang", 30*time.Second, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := r.Run(ctx, "https://x.com/gopher")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, errors.Is(err, timeline.ErrWorkerTimeout))
	require.False(t, res.Success)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, timeline.ClockFunc(time.Now), nil)
	require.Error(t, err)

	_, err = New(Config{Timeout: time.Second}, nil, nil)
	require.Error(t, err)

	r, err := New(Config{Timeout: time.Second}, timeline.ClockFunc(time.Now), nil)
	require.NoError(t, err)
	require.NotEmpty(t, r.cfg.Command)
	require.Equal(t, time.Second, r.Timeout())
}
