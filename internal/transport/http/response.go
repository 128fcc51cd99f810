package httptransport

import (
	"encoding/json"
	"net/http"

	"media-job-service/internal/apperr"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}

// Errors without a code become 500 without leaking their text.
func writeAppErr(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, apiError{
		Message: msg,
		Code:    string(code),
		Field:   apperr.FieldOf(err),
	})
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case apperr.CodeAuthority:
		return http.StatusBadGateway
	case apperr.CodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
