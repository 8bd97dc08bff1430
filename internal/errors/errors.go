package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrCardNotFound is returned when a card does not exist or belongs to another owner.
	ErrCardNotFound = errors.New("card not found")
	// ErrMissingCredentials is returned when a request carries no bearer token.
	ErrMissingCredentials = errors.New("missing or malformed credentials")
	// ErrInvalidToken is returned when a bearer token is invalid, expired or revoked.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrConcurrentModification is returned when a card kept changing under a write.
	ErrConcurrentModification = errors.New("card was modified concurrently")
)

// Is and As re-export the standard helpers so callers need a single errors import.
var (
	Is = errors.Is
	As = errors.As
)

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StorageError wraps a persistence failure. Its detail is logged, never returned to clients.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a failure of op.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return NewHTTPError(http.StatusBadRequest, validationErr.Error(), "VALIDATION_ERROR")
	case errors.Is(err, ErrCardNotFound):
		return NewHTTPError(http.StatusNotFound, ErrCardNotFound.Error(), "CARD_NOT_FOUND")
	case errors.Is(err, ErrMissingCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrMissingCredentials.Error(), "MISSING_CREDENTIALS")
	case errors.Is(err, ErrInvalidToken):
		return NewHTTPError(http.StatusForbidden, ErrInvalidToken.Error(), "INVALID_TOKEN")
	case errors.Is(err, ErrConcurrentModification):
		return NewHTTPError(http.StatusConflict, ErrConcurrentModification.Error(), "CONCURRENT_MODIFICATION")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
