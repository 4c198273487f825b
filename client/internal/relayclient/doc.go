// Package relayclient is a thin HTTP client for the relay-server wire contract.
//
// Client.Poll claims the pending answer for one user (GET /poll/{userId}),
// Client.Health reads GET /health, and Client.Push sends an answer the way the
// RAG producer does (POST /webhook). Any non-200 response is returned as a
// *StatusError carrying the status code and the server's error message.
package relayclient
