package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/controller"
	"github.com/JakeFAU/timeline-scraper/internal/extract"
	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type stubSession struct {
	items     []extract.Container
	navigated []string
	panics    bool
}

func (s *stubSession) Navigate(_ context.Context, url string) (string, error) {
	if s.panics {
		panic("target crashed")
	}
	s.navigated = append(s.navigated, url)
	return url, nil
}

func (s *stubSession) WaitForSelector(context.Context, string, time.Duration) error { return nil }
func (s *stubSession) Scroll(context.Context) error                                 { return nil }

func (s *stubSession) Count(context.Context, string) (int, error) { return len(s.items), nil }

func (s *stubSession) Containers(context.Context, string) ([]extract.Container, error) {
	return s.items, nil
}

func newRunner(t *testing.T, session controller.Session, startErr error) (*Runner, *bool) {
	t.Helper()
	released := false
	factory := func(context.Context) (controller.Session, func(), error) {
		if startErr != nil {
			return nil, nil, startErr
		}
		return session, func() { released = true }, nil
	}
	cfg := controller.DefaultConfig()
	cfg.MaxAttempts = 1
	engine := extract.NewEngine(extract.NewExtractor(extract.DefaultStrategies(), extract.DefaultPolicy()), nil)
	noSleep := controller.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	clock := timeline.ClockFunc(func() time.Time { return testNow })
	return NewRunner(2, cfg, engine, factory, clock, zap.NewNop(), noSleep), &released
}

func article(t *testing.T, id string, top float64) extract.Container {
	t.Helper()
	c, err := extract.NewHTMLContainer(fmt.Sprintf(
		`<article><a href="/gopher/status/%s"><time datetime="2026-10-19T10:00:00.000Z">2h</time></a></article>`, id), top)
	require.NoError(t, err)
	return c
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()

	session := &stubSession{items: []extract.Container{
		article(t, "3", 30), article(t, "1", 10), article(t, "2", 20),
	}}
	runner, released := newRunner(t, session, nil)

	res := runner.Run(context.Background(), "  X.com/Gopher/?ref=home ")
	require.True(t, res.Success, res.Error)
	require.Equal(t, "  X.com/Gopher/?ref=home ", res.URL)
	require.Equal(t, 2, res.TweetsCount)
	require.Len(t, res.Tweets, 2)
	require.Equal(t, 1, res.Tweets[0].SequenceIndex)
	require.Equal(t, "https://x.com/gopher/status/1", res.Tweets[0].Permalink)
	require.Equal(t, "2026-10-19T12:00:00.000Z", res.ScrapedAt)
	require.NotNil(t, res.Metadata)
	require.Equal(t, 1, res.Metadata.Attempts)
	require.Equal(t, 3, res.Metadata.TotalContainers)
	require.True(t, *released)
	require.True(t, strings.HasPrefix(session.navigated[0], "https://x.com/Gopher?_cb="))
}

func TestRunFailures(t *testing.T) {
	t.Parallel()

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()
		runner, _ := newRunner(t, &stubSession{}, nil)
		res := runner.Run(context.Background(), "ftp://x.com/gopher")
		require.False(t, res.Success)
		require.Equal(t, timeline.KindValidation, res.ErrorKind)
		require.Empty(t, res.Tweets)
	})

	t.Run("browser does not start", func(t *testing.T) {
		t.Parallel()
		runner, _ := newRunner(t, nil, errors.New("chrome not found"))
		res := runner.Run(context.Background(), "https://x.com/gopher")
		require.False(t, res.Success)
		require.Contains(t, res.Error, "chrome not found")
		require.Equal(t, timeline.KindInternal, res.ErrorKind)
	})

	t.Run("no containers", func(t *testing.T) {
		t.Parallel()
		runner, released := newRunner(t, &stubSession{}, nil)
		res := runner.Run(context.Background(), "https://x.com/gopher")
		require.False(t, res.Success)
		require.Equal(t, timeline.KindContentNotFound, res.ErrorKind)
		require.Zero(t, res.TweetsCount)
		require.True(t, *released)
	})

	t.Run("panic", func(t *testing.T) {
		t.Parallel()
		runner, released := newRunner(t, &stubSession{panics: true}, nil)
		res := runner.Run(context.Background(), "https://x.com/gopher")
		require.False(t, res.Success)
		require.Contains(t, res.Error, "target crashed")
		require.True(t, *released)
	})
}

func TestEmitWritesOneDocument(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	res := timeline.NewSuccess("https://x.com/gopher", nil, testNow, nil)
	require.NoError(t, Emit(&buf, res))
	require.Equal(t, 1, strings.Count(buf.String(), "\n"))

	var decoded timeline.ScrapeResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, res, decoded)
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://X.com/Gopher/", want: "https://x.com/Gopher"},
		{in: "twitter.com/gopher?lang=en#top", want: "https://twitter.com/gopher"},
		{in: "http://x.com/gopher", want: "http://x.com/gopher"},
		{in: "", wantErr: true},
		{in: "ftp://x.com/gopher", wantErr: true},
		{in: "https:///gopher", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		if tt.wantErr {
			require.ErrorIs(t, err, timeline.ErrValidation, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}
