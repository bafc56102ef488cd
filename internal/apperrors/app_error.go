// Package apperrors carries the HTTP-facing error shape of the relay API.
package apperrors

import (
	"fmt"
	"net/http"
)

// AppError is rendered as the JSON body of a failed request.
type AppError struct {
	// HTTPStatusCode is the status to respond with.
	HTTPStatusCode int `json:"-"`
	// Code is a stable machine-readable identifier.
	Code string `json:"code"`
	// Message is safe to show to a user.
	Message string `json:"message"`
	// Err is the underlying cause, never serialized.
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		HTTPStatusCode: statusCode,
		Code:           code,
		Message:        message,
		Err:            err,
	}
}

func BadRequest(code, message string, err error) *AppError {
	return New(http.StatusBadRequest, code, message, err)
}

func NotFound(code, message string, err error) *AppError {
	return New(http.StatusNotFound, code, message, err)
}

func Internal(message string, err error) *AppError {
	return New(http.StatusInternalServerError, "internal_error", message, err)
}
