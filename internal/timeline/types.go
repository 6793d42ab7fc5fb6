// Package timeline defines the data model shared by the extractor, the worker
// process and the orchestrator.
package timeline

import (
	"strings"
	"time"
)

// TimeLayout is the ISO-8601 layout used for every timestamp in an envelope.
// It matches the millisecond UTC form the timeline renders in datetime attributes.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Post is one item extracted from a rendered timeline.
type Post struct {
	SequenceIndex int    `json:"sequenceIndex"`
	Author        string `json:"author"`
	Text          string `json:"text"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	ReplyCount    int    `json:"replyCount"`
	ShareCount    int    `json:"shareCount"`
	LikeCount     int    `json:"likeCount"`
	Verified      bool   `json:"verified"`
	HasMedia      bool   `json:"hasMedia"`
	MediaCount    int    `json:"mediaCount"`
	ExtractedAt   string `json:"extractedAt"`
}

// Metadata carries diagnostics about the attempt sequence. It is not part of
// the contract and callers must tolerate missing fields.
type Metadata struct {
	Attempts        int    `json:"attempts"`
	RecentCount     int    `json:"recentCount"`
	TotalContainers int    `json:"totalContainers"`
	Selector        string `json:"selector,omitempty"`
	ScrollSteps     int    `json:"scrollSteps,omitempty"`
	FinalURL        string `json:"finalUrl,omitempty"`
	DurationMs      int64  `json:"durationMs,omitempty"`
}

// ScrapeResult is the envelope produced for one scrape request.
type ScrapeResult struct {
	Success     bool      `json:"success"`
	URL         string    `json:"url"`
	TweetsCount int       `json:"tweetsCount"`
	Tweets      []Post    `json:"tweets"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"errorKind,omitempty"`
	ScrapedAt   string    `json:"scrapedAt"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// NewSuccess builds a successful envelope. Tweets are never nil so the JSON
// form always carries an array.
func NewSuccess(url string, posts []Post, scrapedAt time.Time, meta *Metadata) ScrapeResult {
	if posts == nil {
		posts = []Post{}
	}
	return ScrapeResult{
		Success:     true,
		URL:         url,
		TweetsCount: len(posts),
		Tweets:      posts,
		ScrapedAt:   FormatTime(scrapedAt),
		Metadata:    meta,
	}
}

// NewFailure builds a failed envelope from err.
func NewFailure(url string, err error, scrapedAt time.Time, meta *Metadata) ScrapeResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ScrapeResult{
		Success:     false,
		URL:         url,
		TweetsCount: 0,
		Tweets:      []Post{},
		Error:       msg,
		ErrorKind:   KindOf(err),
		ScrapedAt:   FormatTime(scrapedAt),
		Metadata:    meta,
	}
}

// FormatTime renders t in the envelope layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses an ISO-8601 timestamp as rendered by the page.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
