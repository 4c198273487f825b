// Package health tracks whether the relay is reachable.
//
// Monitor.Run calls GET /health every interval while the relay answers. After
// a failure it retries with truncated exponential backoff (1s doubling up to
// the configured maximum, ±25% jitter) until the relay is back.
//
// The state starts as StateConnecting. Changes() emits the new State only when
// it differs from the previous one and is closed when Run returns.
package health
