package browser

import (
	"strings"

	"github.com/chromedp/chromedp"
)

// stealthScript hides the most common headless giveaways before any page
// script runs. It is best effort; the timeline owner can still tell.
const stealthScript = `(() => {
  const define = (obj, key, get) => {
    try { Object.defineProperty(obj, key, { get, configurable: true }); } catch (e) {}
  };
  define(navigator, 'webdriver', () => undefined);
  define(navigator, 'languages', () => Object.freeze(['en-US', 'en']));
  define(navigator, 'plugins', () => [
    { name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
    { name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
  ]);
  if (!navigator.hardwareConcurrency) define(navigator, 'hardwareConcurrency', () => 4);
  if (!navigator.deviceMemory) define(navigator, 'deviceMemory', () => 8);
  if (!window.chrome) window.chrome = {};
  if (!window.chrome.runtime) window.chrome.runtime = {};
  const query = window.Permissions && Permissions.prototype.query;
  if (query) {
    Permissions.prototype.query = function (p) {
      if (p && p.name === 'notifications') {
        return Promise.resolve({ state: Notification.permission });
      }
      return query.call(this, p);
    };
  }
})();`

// allocatorOptions returns the exec allocator flags for cfg.
func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("lang", primaryLanguage(cfg.AcceptLanguage)),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox, chromedp.Flag("disable-setuid-sandbox", true))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if len(cfg.UserAgents) > 0 {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgents[0]))
	}
	return opts
}

func primaryLanguage(acceptLanguage string) string {
	lang, _, _ := strings.Cut(acceptLanguage, ",")
	lang, _, _ = strings.Cut(lang, ";")
	if lang = strings.TrimSpace(lang); lang == "" {
		return "en-US"
	}
	return lang
}
