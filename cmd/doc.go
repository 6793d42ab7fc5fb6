// Package cmd defines the timeline-scraper CLI.
//
// Architecture overview:
//   - serve: internal/api.Server exposes health, metrics and the scrape endpoints. Requests are validated,
//     normalized and handed to the dispatcher, which queues them on a bounded in-memory queue drained by a fixed
//     worker pool. A per-host token bucket paces how often workers start against the same site.
//   - scrape: each job runs in its own worker process (this binary, "scrape <url>"). The worker drives a headless
//     Chrome session through navigation, waiting, scrolling and extraction with retries, then prints exactly one JSON
//     envelope on stdout. Logs go to stderr and are folded into the parent's log stream.
//   - The parent kills a worker that exceeds worker.timeout and reports worker_timeout. A crashed or silent worker is
//     reported as worker_exit; unparseable output as envelope_parse.
//
// Configuration is read from a YAML file (--config or SCRAPER_CONFIG) and SCRAPER_* environment variables. PORT
// overrides server.port for container platforms.
package cmd
