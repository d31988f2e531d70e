// Package httputil centralizes JSON response envelopes so every handler
// renders errors and payloads the same way.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "habita/pkg/domain-errors"
)

// statusByCode maps domain error codes to HTTP statuses. Codes absent from the
// map fall back to 500 so new codes fail loudly instead of leaking as 200s.
var statusByCode = map[dErrors.Code]int{
	dErrors.CodeValidation:            http.StatusBadRequest,
	dErrors.CodeForbiddenField:        http.StatusBadRequest,
	dErrors.CodeUnauthorized:          http.StatusUnauthorized,
	dErrors.CodeForbidden:             http.StatusForbidden,
	dErrors.CodeNotFound:              http.StatusNotFound,
	dErrors.CodeConflict:              http.StatusConflict,
	dErrors.CodeInvalidTransition:     http.StatusConflict,
	dErrors.CodePreconditionNotMet:    http.StatusUnprocessableEntity,
	dErrors.CodeProviderNotAssignable: http.StatusUnprocessableEntity,
	dErrors.CodeInternal:              http.StatusInternalServerError,
}

// StatusOf resolves the HTTP status for a (possibly uncoded) error.
func StatusOf(err error) int {
	if status, ok := statusByCode[dErrors.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON renders v with the given status. Encoding failures are swallowed;
// by that point the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError renders the standard error envelope. The description is omitted
// for internal errors so infrastructure details never reach API callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}
	WriteJSON(w, StatusOf(err), body)
}
