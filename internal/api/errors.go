package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"cubesql/internal/domain"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var resolution *domain.ResolutionError
	var validation *domain.ValidationError
	var schemaValidation *domain.SchemaValidationError
	var compilation *domain.CompilationError
	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &notFound), errors.As(err, &resolution):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &schemaValidation):
		return http.StatusBadRequest
	case errors.As(err, &compilation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Code: status, Message: msg})
}
