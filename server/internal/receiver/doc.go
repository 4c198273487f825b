// Package receiver implements POST /webhook — the endpoint the external
// answer producer calls when an answer for a user is ready.
//
// Receiver validates that user_id (or its camelCase alias userId) and answer
// are non-empty (400 with an error body otherwise, nothing stored), then calls
// store.Put. A newer push for the same user silently replaces an unclaimed
// answer; pushes are not deduplicated.
//
// New(st, rec) wires the receiver to the answer store and metrics recorder.
package receiver
