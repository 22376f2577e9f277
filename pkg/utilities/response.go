package utilities

import (
	"encoding/json"
	"net/http"
)

// Result is the envelope every endpoint returns: a status code, a message
// and the optional payload. Failures never carry data.
type Result struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes a Result with the matching HTTP status code.
func WriteJSON(w http.ResponseWriter, r Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.Status)
	_ = json.NewEncoder(w).Encode(r)
}

// OK writes a success envelope with the given payload.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, Result{Status: http.StatusOK, Message: "success", Data: data})
}

// Fail writes a failure envelope with no payload.
func Fail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, Result{Status: status, Message: message})
}
