package extract

import (
	"fmt"
	"sort"
	"strings"
)

// Strategy resolves a value from a container: the first element matching
// Selector, read from Attribute. An empty Attribute reads the element text and
// an empty Selector addresses the container element itself.
type Strategy struct {
	Selector  string `mapstructure:"selector" json:"selector"`
	Attribute string `mapstructure:"attribute" json:"attribute,omitempty"`
}

func (s Strategy) String() string {
	if s.Attribute == "" {
		return s.Selector
	}
	return fmt.Sprintf("%s@%s", s.Selector, s.Attribute)
}

// FieldStrategies lists, per field, the strategies tried in priority order.
// Presence fields (Verified, Media, Promoted) hold plain selectors.
type FieldStrategies struct {
	Author        []Strategy
	Text          []Strategy
	Permalink     []Strategy
	Timestamp     []Strategy
	Replies       []Strategy
	Shares        []Strategy
	Likes         []Strategy
	SocialContext []Strategy
	Verified      []string
	Media         []string
	Promoted      []string
}

// DefaultStrategies returns the selector tables for the current X markup.
// data-testid attributes are the most stable hooks the page offers; the
// fallbacks use structural or ARIA hints.
func DefaultStrategies() FieldStrategies {
	return FieldStrategies{
		Author: []Strategy{
			{Selector: `[data-testid="User-Name"] a span`},
			{Selector: `[data-testid="User-Name"]`},
			{Selector: `a[role="link"][href^="/"] span`},
		},
		Text: []Strategy{
			{Selector: `[data-testid="tweetText"]`},
			{Selector: `div[lang]`},
		},
		Permalink: []Strategy{
			{Selector: `a[href*="/status/"]:has(time)`, Attribute: "href"},
			{Selector: `a[href*="/status/"]`, Attribute: "href"},
		},
		Timestamp: []Strategy{
			{Selector: `time`, Attribute: "datetime"},
		},
		Replies: []Strategy{
			{Selector: `[data-testid="reply"]`, Attribute: "aria-label"},
			{Selector: `[data-testid="reply"]`},
		},
		Shares: []Strategy{
			{Selector: `[data-testid="retweet"]`, Attribute: "aria-label"},
			{Selector: `[data-testid="unretweet"]`, Attribute: "aria-label"},
			{Selector: `[data-testid="retweet"]`},
		},
		Likes: []Strategy{
			{Selector: `[data-testid="like"]`, Attribute: "aria-label"},
			{Selector: `[data-testid="unlike"]`, Attribute: "aria-label"},
			{Selector: `[data-testid="like"]`},
		},
		SocialContext: []Strategy{
			{Selector: `[data-testid="socialContext"]`},
		},
		Verified: []string{
			`[data-testid="icon-verified"]`,
			`svg[aria-label="Verified account"]`,
		},
		Media: []string{
			`[data-testid="tweetPhoto"], [data-testid="videoPlayer"]`,
			`[data-testid="card.layoutLarge.media"]`,
			`img[src*="pbs.twimg.com/media"]`,
		},
		// Ads carry a placement tracker instead of a "Promoted" social context.
		Promoted: []string{
			`[data-testid="placementTracking"]`,
		},
	}
}

// WithOverrides replaces the strategy list of each named field. Field names
// are the lowercase FieldStrategies names; presence fields use the Selector
// of each strategy.
func (f FieldStrategies) WithOverrides(overrides map[string][]Strategy) (FieldStrategies, error) {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		list := overrides[name]
		if len(list) == 0 {
			continue
		}
		switch strings.ToLower(name) {
		case "author":
			f.Author = list
		case "text":
			f.Text = list
		case "permalink":
			f.Permalink = list
		case "timestamp":
			f.Timestamp = list
		case "replies":
			f.Replies = list
		case "shares":
			f.Shares = list
		case "likes":
			f.Likes = list
		case "socialcontext", "social_context":
			f.SocialContext = list
		case "verified":
			f.Verified = selectorsOf(list)
		case "media":
			f.Media = selectorsOf(list)
		case "promoted":
			f.Promoted = selectorsOf(list)
		default:
			return f, fmt.Errorf("unknown field %q in strategy overrides", name)
		}
	}
	return f, nil
}

func selectorsOf(list []Strategy) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s.Selector != "" {
			out = append(out, s.Selector)
		}
	}
	return out
}
