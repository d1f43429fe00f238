// Package httpx holds the JSON response helpers shared by every handler
// package. Error bodies carry a stable machine code alongside the
// human-readable message so clients can switch on failures without parsing
// prose.
package httpx

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the standard error envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorBody{Error: message, Code: code})
}
