// Package sinks implements concrete progress consumers: the structured log
// progress indicator and Prometheus collectors. Each sink satisfies the
// progress.Sink interface.
package sinks
