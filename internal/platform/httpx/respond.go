// Package httpx provides JSON response utilities shared by all handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// MessageBody is the JSON envelope used for status and error responses.
type MessageBody struct {
	Message string `json:"message"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Message sends a JSON response carrying only a message field.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, MessageBody{Message: message})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
