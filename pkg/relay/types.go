package relay

import "time"

// Status values carried in the "status" field of relay responses.
const (
	StatusReceived   = "received"
	StatusNoMessages = "no_messages"
	StatusHealthy    = "healthy"
)

// TimeFormat is the layout used for every timestamp the relay generates.
const TimeFormat = time.RFC3339

// PushRequest is the body of POST /webhook, sent by the answer producer.
type PushRequest struct {
	UserID string `json:"user_id"`
	Answer string `json:"answer"`

	// Timestamp is the producer's own timestamp. It is opaque to the relay
	// and passed through to the consumer unchanged; when empty the relay
	// substitutes its arrival time.
	Timestamp string `json:"timestamp,omitempty"`

	// UserIDAlias accepts the camelCase spelling some producers send.
	UserIDAlias string `json:"userId,omitempty"`
}

// EffectiveUserID returns UserID, falling back to the camelCase alias.
func (p PushRequest) EffectiveUserID() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.UserIDAlias
}

// PushResponse acknowledges an accepted push.
type PushResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Answer is a claimed answer returned by GET /poll/{userId}.
type Answer struct {
	UserID    string `json:"user_id"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

// PollResponse is the union body of GET /poll/{userId}: either Status is
// "no_messages" and the answer fields are empty, or the answer fields are set
// and Status is empty.
type PollResponse struct {
	Status    string `json:"status,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Answer    string `json:"answer,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Found reports whether the poll response carries an answer.
func (p PollResponse) Found() bool {
	return p.Status != StatusNoMessages && p.Answer != ""
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	StoredResponses int    `json:"stored_responses"`
}

// ErrorResponse is the generic JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
