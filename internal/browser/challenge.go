package browser

import "strings"

var challengeMarkers = []struct {
	kind    string
	title   []string
	content []string
}{
	{"cloudflare", []string{"just a moment", "attention required"}, []string{"cf-challenge", "cf_chl_opt", "cf-turnstile"}},
	{"captcha", nil, []string{"g-recaptcha", "h-captcha", "arkose"}},
	{"rate_limited", nil, []string{"rate limit exceeded", "too many requests"}},
	{"error_page", nil, []string{"something went wrong. try reloading", "something went wrong, but don"}},
}

// detectChallenge reports the kind of block or error page described by title
// and body, or "" when the page looks like real content.
func detectChallenge(title, body string) string {
	title = strings.ToLower(title)
	body = strings.ToLower(body)
	for _, m := range challengeMarkers {
		for _, marker := range m.title {
			if strings.Contains(title, marker) {
				return m.kind
			}
		}
		for _, marker := range m.content {
			if strings.Contains(body, marker) {
				return m.kind
			}
		}
	}
	return ""
}
