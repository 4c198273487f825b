// Package poller drives the client side of the relay: on every tick it claims
// pending answers for each known user and hands them to the UI layer over a
// channel.
//
// Lifecycle:
//
//	p := poller.New(client, users, opts)
//	stop := p.Start(ctx)
//	for m := range p.Messages() { ... }
//	stop() // cancels the loop and waits for in-flight polls
//
// Polls within a tick run concurrently, bounded by Options.MaxConcurrent, and
// each one is bounded by Options.Timeout. A failing user is logged and
// skipped. Once stop is called no further message is delivered; an answer
// that resolves after cancellation is discarded. The Messages channel is
// closed when the loop has fully exited.
//
// Dispatch adapts the channel to a callback for callers that prefer one.
package poller
