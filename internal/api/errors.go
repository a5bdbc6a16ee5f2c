package api

import (
	"context"
	"errors"
	"net/http"

	"metricql/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var accessDenied *domain.AccessDeniedError
	var validation *domain.ValidationError
	var unknownField *domain.UnknownFieldError
	var unsupportedOp *domain.UnsupportedOperatorError
	var missingJoin *domain.MissingJoinError
	var unsupportedDialect *domain.UnsupportedDialectError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &accessDenied):
		return http.StatusForbidden
	case errors.As(err, &validation),
		errors.As(err, &unknownField),
		errors.As(err, &unsupportedOp):
		return http.StatusBadRequest
	case errors.As(err, &missingJoin),
		errors.As(err, &unsupportedDialect):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON body of every error response.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	FieldID string `json:"fieldId,omitempty"`
}

func errorBodyFor(status int, err error) errorBody {
	body := errorBody{Code: status, Message: err.Error()}
	var unknownField *domain.UnknownFieldError
	if errors.As(err, &unknownField) {
		body.FieldID = unknownField.FieldID
	}
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
	}
	return body
}
