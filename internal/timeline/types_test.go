package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScrapeResultRoundTrip(t *testing.T) {
	t.Parallel()

	scrapedAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	original := NewSuccess("https://x.com/golang", []Post{
		{
			SequenceIndex: 1,
			Author:        "Go",
			Text:          "Go 1.30 is released",
			Permalink:     "https://x.com/golang/status/2",
			Timestamp:     "2026-10-18T09:00:00.000Z",
			LikeCount:     1234,
			HasMedia:      true,
			MediaCount:    2,
			ExtractedAt:   "2026-10-19T12:00:00.000Z",
		},
		{
			SequenceIndex: 2,
			Author:        "Go",
			Permalink:     "https://x.com/golang/status/1",
			ExtractedAt:   "2026-10-19T12:00:00.000Z",
		},
	}, scrapedAt, &Metadata{Attempts: 2, RecentCount: 1, TotalContainers: 7})

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded ScrapeResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, original, decoded)
	require.Equal(t, "https://x.com/golang/status/2", decoded.Tweets[0].Permalink)
	require.Equal(t, decoded.TweetsCount, len(decoded.Tweets))
}

func TestNewFailureCarriesKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("attempt 3: %w", ErrContentNotFound)
	res := NewFailure("https://x.com/nobody", err, time.Unix(0, 0), nil)

	require.False(t, res.Success)
	require.Equal(t, KindContentNotFound, res.ErrorKind)
	require.Contains(t, res.Error, "timeline content not found")
	require.NotNil(t, res.Tweets)
	require.Zero(t, res.TweetsCount)
	require.Equal(t, "1970-01-01T00:00:00.000Z", res.ScrapedAt)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	require.Contains(t, string(data), `"tweets":[]`)
}

func TestSuccessOmitsError(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewSuccess("https://x.com/a", nil, time.Unix(0, 0), nil))
	require.NoError(t, err)
	require.NotContains(t, string(data), `"error"`)
	require.NotContains(t, string(data), `"metadata"`)
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", KindOf(nil))
	require.Equal(t, KindWorkerTimeout, KindOf(fmt.Errorf("wrap: %w", ErrWorkerTimeout)))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
	require.ErrorIs(t, ErrorForKind(KindNavigation), ErrNavigation)
	require.Nil(t, ErrorForKind("nope"))
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	got, ok := ParseTime("2024-03-01T10:20:30.000Z")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), got)

	_, ok = ParseTime("yesterday")
	require.False(t, ok)
	_, ok = ParseTime("  ")
	require.False(t, ok)

	require.Equal(t, "2024-03-01T10:20:30.000Z", FormatTime(got))
}
