package api

import (
	"errors"
	"net/http"

	"querybatch/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var unknownType *domain.UnknownTypeError
	var forbidden *domain.ForbiddenFilterError
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &unknownType):
		return http.StatusNotFound
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
