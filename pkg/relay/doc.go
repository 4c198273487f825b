// Package relay defines the JSON wire contract shared by the relay server and
// the polling client. These are the canonical request and response bodies of
// POST /webhook, GET /poll/{userId} and GET /health.
package relay
