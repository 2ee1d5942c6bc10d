// Package shared holds the JSON response helpers every handler uses, so all
// endpoints answer with the same envelopes.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "twinhub/pkg/domain-errors"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a coded domain error into the uniform error envelope.
// Uncoded errors answer as internal without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := "internal error"
	var de *dErrors.Error
	if errors.As(err, &de) {
		code = de.Code
		message = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": message,
	})
}
