// Package httpx holds the HTTP plumbing shared by the relay handlers: JSON
// response helpers and the middleware chain wrapped around every route.
//
// Middleware, outermost first (see Chain):
//   - Recover   — turns a handler panic into 500 {error} so one bad request
//     cannot take the listener down
//   - RequestID — keeps an incoming X-Request-ID or assigns a fresh UUID,
//     echoes it and makes it available to handlers via Logger(ctx)
//   - CORS      — answers preflight requests and sets Access-Control headers
//     for the configured origins
package httpx
