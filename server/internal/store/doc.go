// Package store owns the in-memory answer relay state: at most one pending
// answer per user, claimed destructively by polls and evicted silently once it
// outlives the configured max age. Nothing is persisted.
package store
