package shared

import (
	"errors"
	"net/http"
)

// AppError carries an HTTP status and an optional payload through the
// service layer to the fiber error handler.
type AppError struct {
	StatusCode int
	Message    string
	Data       interface{}
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NewBadRequestError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Message: message, Err: err}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{StatusCode: http.StatusUnauthorized, Message: message}
}

func NewForbiddenError(message string, data interface{}) *AppError {
	return &AppError{StatusCode: http.StatusForbidden, Message: message, Data: data}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Message: message}
}

func NewTooManyRequestsError(message string, data interface{}) *AppError {
	return &AppError{StatusCode: http.StatusTooManyRequests, Message: message, Data: data}
}

func NewBadGatewayError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusBadGateway, Message: message, Err: err}
}

func NewInternalError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Message: message, Err: err}
}
