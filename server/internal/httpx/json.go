package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ragchat/answerrelay/pkg/relay"
)

// JSON writes v as a JSON body with the given status code.
func JSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// Error writes a relay.ErrorResponse with the given status code.
func Error(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, relay.ErrorResponse{Error: msg})
}
