// Package metrics exposes relay counters in the Prometheus text exposition
// format at GET /metrics.
//
// Store-level counters (stored, replaced, claimed, expired, pending) are read
// from store.Stats at scrape time. HTTP-level counters (rejected pushes, polls,
// empty polls) are recorded by the receiver and api handlers through Recorder.
package metrics
