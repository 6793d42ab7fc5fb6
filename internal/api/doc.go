// Package api hosts the HTTP server, middleware, and REST handlers. Routes:
//   - GET / for a liveness and version probe.
//   - GET /healthz for orchestration probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /scrape and GET /scrape/{username} to scrape a profile timeline.
package api
