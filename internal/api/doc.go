// Package api hosts the read-only REST handlers for operator access. Routes:
//   - GET /api/phases lists every started crawl phase.
//   - GET /api/phases/{phase} returns the tallies of one phase.
//
// The handlers are mounted on the metrics listener next to /healthz and
// /metrics.
package api
