// Package api hosts the HTTP server for the lead finder. Routes:
//   - POST /trigger-scan runs one discovery pass and reports how many leads were added.
//   - GET /health is a liveness probe.
//   - GET /leads and GET /scans page through stored leads and recent passes.
//   - GET /metrics for Prometheus scraping.
package api
