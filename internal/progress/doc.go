// Package progress carries crawl progress from fetchers and the orchestrator to
// pluggable sinks. Emitters never block: events are buffered by a Hub, batched
// on a background goroutine, and fanned out to sinks such as the live log
// indicator or Prometheus collectors.
package progress
