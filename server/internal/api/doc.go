// Package api implements the consumer side of the relay HTTP surface.
//
// New(store, recorder) returns an http.Handler that serves:
//
//	GET /poll/{userId} — claim the pending answer for userId, if any
//	GET /health        — liveness and the number of unclaimed answers
//
// A poll that finds an answer returns {user_id, answer, timestamp} and removes
// it from the store; later polls return {status: "no_messages"} until a new
// push arrives. Absence is a normal outcome and always answered with 200.
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. JSON bodies are the types of package relay.
package api
