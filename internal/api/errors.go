package api

import (
	"fmt"
	"net/http"
)

// Error codes surfaced to clients.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeNotFound        = "NOT_FOUND"
)

type ApiError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Code       string `json:"code"`
	// Details carries diagnostic detail and is only ever populated in
	// dev mode.
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    msg,
		Code:       CodeValidationError,
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    "room not found",
		Code:       CodeNotFound,
	}
}

func NewDatabaseError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    "something went wrong, please try again",
		Code:       CodeDatabaseError,
		Err:        err,
	}
}

func NewInternalError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    "an unexpected error occurred",
		Code:       CodeInternalError,
		Err:        err,
	}
}
