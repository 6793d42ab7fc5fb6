package extract

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// tweet describes one synthetic timeline item rendered by render.
type tweet struct {
	social   string
	author   string
	handle   string
	href     string
	datetime string
	text     string
	replies  string
	shares   string
	likes    string
	photos   int
	verified bool
	ad       bool
}

func (tw tweet) render() string {
	var b strings.Builder
	b.WriteString(`<article data-testid="tweet" role="article">`)
	if tw.social != "" {
		fmt.Fprintf(&b, `<div data-testid="socialContext">%s</div>`, tw.social)
	}
	fmt.Fprintf(&b, `<div data-testid="User-Name"><a href="/%s" role="link"><span>%s</span></a><a href="/%s" role="link"><span>@%s</span></a>`,
		tw.handle, tw.author, tw.handle, tw.handle)
	if tw.verified {
		b.WriteString(`<svg data-testid="icon-verified" aria-label="Verified account"></svg>`)
	}
	b.WriteString(`</div>`)
	if tw.ad {
		b.WriteString(`<div data-testid="placementTracking"><span>Ad</span></div>`)
	}
	if tw.href != "" {
		fmt.Fprintf(&b, `<a href="%s"><time datetime="%s">Oct</time></a>`, tw.href, tw.datetime)
	} else if tw.datetime != "" {
		fmt.Fprintf(&b, `<time datetime="%s">Oct</time>`, tw.datetime)
	}
	if tw.text != "" {
		fmt.Fprintf(&b, `<div data-testid="tweetText" lang="en">%s</div>`, tw.text)
	}
	fmt.Fprintf(&b, `<button data-testid="reply" aria-label="%s"></button>`, tw.replies)
	fmt.Fprintf(&b, `<button data-testid="retweet" aria-label="%s"></button>`, tw.shares)
	fmt.Fprintf(&b, `<button data-testid="like" aria-label="%s"></button>`, tw.likes)
	for i := 0; i < tw.photos; i++ {
		fmt.Fprintf(&b, `<div data-testid="tweetPhoto"><img src="https://pbs.twimg.com/media/%d.jpg"></div>`, i)
	}
	b.WriteString(`</article>`)
	return b.String()
}

func container(t *testing.T, top float64, tw tweet) Container {
	t.Helper()
	c, err := NewHTMLContainer(tw.render(), top)
	require.NoError(t, err)
	return c
}

func post(id string, age time.Duration) tweet {
	return tweet{
		author:   "Gopher",
		handle:   "gopher",
		href:     "/gopher/status/" + id + "?s=20",
		datetime: testNow.Add(-age).Format(time.RFC3339Nano),
		text:     "post " + id,
		replies:  "1 Reply",
		shares:   "2 reposts. Repost",
		likes:    "3 Likes. Like",
	}
}

// fakeContainer answers lookups from maps keyed by Strategy.String and can
// be told to fail or panic on one key.
type fakeContainer struct {
	top     float64
	values  map[string]string
	counts  map[string]int
	panicOn string
	errOn   string
}

func (f *fakeContainer) Lookup(s Strategy) (string, error) {
	key := s.String()
	if key == f.panicOn {
		panic("detached node")
	}
	if key == f.errOn {
		return "", fmt.Errorf("stale element")
	}
	return f.values[key], nil
}

func (f *fakeContainer) Count(selector string) (int, error) {
	if selector == f.panicOn {
		panic("detached node")
	}
	return f.counts[selector], nil
}

func (f *fakeContainer) Top() float64 { return f.top }
