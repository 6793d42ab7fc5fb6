package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"1,234 Likes":          1234,
		"Like":                 0,
		"":                     0,
		"12 Replies. Reply":    12,
		"1,234,567 views":      1234567,
		"1.2K":                 1200,
		"3M reposts":           3000000,
		"4.5k Likes":           4500,
		"0 Likes":              0,
		"99999999999999 Likes": 99999999999999,
		"2,500,000,000 Likes":  2500000000,
		"99999999999999999999": 0,
		"Liked by 7 people":    7,
		"2 reposts, 9 likes":   2,
	}
	for label, want := range cases {
		require.Equal(t, want, ParseCount(label), "label %q", label)
	}
}

func TestNormalizePermalink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		href string
		base string
		want string
	}{
		{"relative with query", "/golang/status/123?s=20", "https://x.com", "https://x.com/golang/status/123"},
		{"absolute photo link", "https://twitter.com/golang/status/123/photo/1", "https://x.com", "https://twitter.com/golang/status/123"},
		{"fragment", "/golang/status/9#m", "https://x.com", "https://x.com/golang/status/9"},
		{"profile link", "/golang", "https://x.com", ""},
		{"empty", "  ", "https://x.com", ""},
		{"bad base", "/golang/status/5", "::", "https://x.com/golang/status/5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, NormalizePermalink(tt.href, tt.base))
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2026-10-18T09:00:00.000Z", NormalizeTimestamp("2026-10-18T09:00:00Z"))
	require.Equal(t, "2026-10-18T07:00:00.000Z", NormalizeTimestamp("2026-10-18T09:00:00+02:00"))
	require.Equal(t, "junk", NormalizeTimestamp(" junk "))
	require.Equal(t, "", NormalizeTimestamp(""))
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Gopher", firstLine("\n  Gopher \n@gopher"))
	require.Equal(t, "", firstLine(" \n "))
}
