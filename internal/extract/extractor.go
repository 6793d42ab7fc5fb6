package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

// Exclusion explains why an item was left out of a batch. The zero value
// means the item was accepted.
type Exclusion string

// Exclusion reasons.
const (
	Accepted          Exclusion = ""
	ExcludedPinned    Exclusion = "pinned"
	ExcludedNoLink    Exclusion = "missing_permalink"
	ExcludedStale     Exclusion = "stale"
	ExcludedDuplicate Exclusion = "duplicate"
)

const (
	defaultPermaBase    = "https://x.com"
	defaultFreshness    = 30 * 24 * time.Hour
	defaultRecentWindow = 7 * 24 * time.Hour
)

// Policy controls which items are excluded and how recency is judged.
type Policy struct {
	// ExcludePinned drops items whose social context carries a pinned marker
	// and items that match a promoted-placement selector.
	ExcludePinned bool
	// PinnedMarkers are matched case-insensitively against the social context.
	PinnedMarkers []string
	// RecencyFilter drops items older than FreshnessCutoff.
	RecencyFilter   bool
	FreshnessCutoff time.Duration
	// RecentWindow bounds the items counted as recent in a Batch.
	RecentWindow time.Duration
	// PermalinkBase resolves relative permalinks.
	PermalinkBase string
}

// DefaultPolicy excludes pinned items and items older than 30 days, and
// counts the last 7 days as recent.
func DefaultPolicy() Policy {
	return Policy{
		ExcludePinned:   true,
		PinnedMarkers:   []string{"pinned", "promoted"},
		RecencyFilter:   true,
		FreshnessCutoff: defaultFreshness,
		RecentWindow:    defaultRecentWindow,
		PermalinkBase:   defaultPermaBase,
	}
}

func (p Policy) withDefaults() Policy {
	if p.FreshnessCutoff <= 0 {
		p.FreshnessCutoff = defaultFreshness
	}
	if p.RecentWindow <= 0 {
		p.RecentWindow = defaultRecentWindow
	}
	if p.PermalinkBase == "" {
		p.PermalinkBase = defaultPermaBase
	}
	return p
}

// Extractor turns one container into a Post.
type Extractor struct {
	fields FieldStrategies
	policy Policy
}

// NewExtractor builds an Extractor over the given strategy tables.
func NewExtractor(fields FieldStrategies, policy Policy) *Extractor {
	return &Extractor{fields: fields, policy: policy.withDefaults()}
}

// Extract resolves the fields of c. An item excluded by policy returns a
// non-empty Exclusion and no error. Any lookup failure or panic while
// resolving the item is reported as ErrItemExtraction.
func (x *Extractor) Extract(c Container, now time.Time) (post timeline.Post, reason Exclusion, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			post, reason = timeline.Post{}, Accepted
			err = fmt.Errorf("%w: panic: %v", timeline.ErrItemExtraction, rec)
		}
	}()

	r := resolver{c: c}

	if x.policy.ExcludePinned && x.isPinned(&r) {
		return timeline.Post{}, ExcludedPinned, r.err
	}

	permalink := NormalizePermalink(r.first(x.fields.Permalink), x.policy.PermalinkBase)
	if r.err != nil {
		return timeline.Post{}, Accepted, r.err
	}
	if permalink == "" {
		return timeline.Post{}, ExcludedNoLink, nil
	}

	timestamp := NormalizeTimestamp(r.first(x.fields.Timestamp))
	if x.policy.RecencyFilter {
		if ts, ok := timeline.ParseTime(timestamp); ok && now.Sub(ts) > x.policy.FreshnessCutoff {
			return timeline.Post{}, ExcludedStale, r.err
		}
	}

	media := r.firstCount(x.fields.Media)
	post = timeline.Post{
		Author:      firstLine(r.first(x.fields.Author)),
		Text:        r.first(x.fields.Text),
		Permalink:   permalink,
		Timestamp:   timestamp,
		ReplyCount:  ParseCount(r.first(x.fields.Replies)),
		ShareCount:  ParseCount(r.first(x.fields.Shares)),
		LikeCount:   ParseCount(r.first(x.fields.Likes)),
		Verified:    r.firstCount(x.fields.Verified) > 0,
		HasMedia:    media > 0,
		MediaCount:  media,
		ExtractedAt: timeline.FormatTime(now),
	}
	if r.err != nil {
		return timeline.Post{}, Accepted, r.err
	}
	return post, Accepted, nil
}

// IsRecent reports whether the post's timestamp falls inside the recent window.
func (x *Extractor) IsRecent(p timeline.Post, now time.Time) bool {
	ts, ok := timeline.ParseTime(p.Timestamp)
	if !ok {
		return false
	}
	return now.Sub(ts) <= x.policy.RecentWindow
}

func (x *Extractor) isPinned(r *resolver) bool {
	if r.firstCount(x.fields.Promoted) > 0 {
		return true
	}
	social := strings.ToLower(r.first(x.fields.SocialContext))
	if social == "" {
		return false
	}
	for _, marker := range x.policy.PinnedMarkers {
		if marker != "" && strings.Contains(social, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// resolver walks strategy lists against one container and remembers the
// first lookup error so the caller can drop the whole item.
type resolver struct {
	c   Container
	err error
}

func (r *resolver) first(strategies []Strategy) string {
	if r.err != nil {
		return ""
	}
	for _, s := range strategies {
		v, err := r.c.Lookup(s)
		if err != nil {
			r.err = fmt.Errorf("%w: lookup %s: %v", timeline.ErrItemExtraction, s, err)
			return ""
		}
		if v != "" {
			return v
		}
	}
	return ""
}

func (r *resolver) firstCount(selectors []string) int {
	if r.err != nil {
		return 0
	}
	for _, sel := range selectors {
		n, err := r.c.Count(sel)
		if err != nil {
			r.err = fmt.Errorf("%w: count %s: %v", timeline.ErrItemExtraction, sel, err)
			return 0
		}
		if n > 0 {
			return n
		}
	}
	return 0
}
