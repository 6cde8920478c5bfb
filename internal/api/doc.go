// Package api hosts the HTTP surface of the scraper daemon. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/scrape to trigger a run; the body is an optional {"url": ...}.
package api
