// Package ws implements the WebSocket health stream of the relay server.
//
// Hub manages a set of connected dashboard clients and pushes the relay's
// health payload to all of them on a configurable interval. It never touches
// pending answers; answers are only ever delivered through GET /poll.
//
// New(store, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker — blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// health immediately on connect, then streams updates on each tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "health",
//	  "data":  { /* same schema as GET /health */ }
//	}
//
// The upgrader accepts all origins. Mounted at /ws/health by the server.
package ws
