// Package httputil renders JSON responses and coded errors consistently.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "onboard/pkg/domain-errors"
)

// DefaultFailureMessage is the summary used when a handler does not supply one.
const DefaultFailureMessage = "Request failed."

// genericServerError replaces server-fault messages so internals never leak.
const genericServerError = "internal server error"

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err with the default summary message.
func WriteError(w http.ResponseWriter, err error) {
	WriteFailure(w, DefaultFailureMessage, err)
}

// WriteFailure renders err as {"message": summary, "error": description}.
// Client faults expose their message; server faults and uncoded errors are
// reduced to a generic description.
func WriteFailure(w http.ResponseWriter, summary string, err error) {
	status := http.StatusInternalServerError
	description := genericServerError
	if de, ok := dErrors.As(err); ok {
		status = dErrors.ToHTTPStatus(de.Code)
		if de.Category() == dErrors.ClientFault {
			description = de.Message
		}
	}
	WriteJSON(w, status, map[string]string{
		"message": summary,
		"error":   description,
	})
}
