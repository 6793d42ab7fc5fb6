package extract

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

var (
	countPattern  = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?(?:([KkMm])\b)?`)
	statusPattern = regexp.MustCompile(`^/([^/]+)/status/(\d+)`)
)

// ParseCount reads the first comma-grouped digit run from a descriptive label
// such as "1,234 Likes". Abbreviated counts ("1.2K") are scaled. Labels with
// no digits, or values that do not fit an int, yield 0.
func ParseCount(label string) int {
	m := countPattern.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	whole := strings.ReplaceAll(m[1], ",", "")
	if m[3] == "" {
		n, err := strconv.Atoi(whole)
		if err != nil || n < 0 {
			return 0
		}
		return n
	}

	numeric := whole
	if m[2] != "" {
		numeric += "." + m[2]
	}
	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0
	}
	switch strings.ToUpper(m[3]) {
	case "K":
		value *= 1_000
	case "M":
		value *= 1_000_000
	}
	if value < 0 || value >= math.MaxInt {
		return 0
	}
	return int(math.Round(value))
}

// NormalizePermalink resolves href against base and trims it to the canonical
// /<user>/status/<id> form. It returns "" when href does not reference a post.
func NormalizePermalink(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" || !strings.Contains(href, "/status/") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Host == "" {
		baseURL = &url.URL{Scheme: "https", Host: "x.com"}
	}
	resolved := baseURL.ResolveReference(ref)
	resolved.RawQuery = ""
	resolved.Fragment = ""

	if m := statusPattern.FindStringSubmatch(resolved.Path); m != nil {
		resolved.Path = "/" + m[1] + "/status/" + m[2]
		resolved.RawPath = ""
	}
	return resolved.String()
}

// NormalizeTimestamp renders a datetime attribute in the envelope layout.
// Values that do not parse are returned trimmed but otherwise untouched.
func NormalizeTimestamp(raw string) string {
	if t, ok := timeline.ParseTime(raw); ok {
		return timeline.FormatTime(t)
	}
	return strings.TrimSpace(raw)
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
