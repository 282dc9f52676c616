// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/svg-workbench/backend/internal/catalog"
	"github.com/svg-workbench/backend/internal/session"
	"github.com/svg-workbench/backend/internal/svg"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewForbiddenError creates a 403 error for an edit the rules do not allow
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Status:  http.StatusForbidden,
		Code:    "FORBIDDEN",
		Message: message,
	}
}

// NewUnprocessableError creates a 422 error for input that is well formed
// but violates the schema or the document rules
func NewUnprocessableError(code, message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    code,
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// NewDocumentError maps an error from the document layers onto an API error.
// resource and id name what was being worked on.
func NewDocumentError(resource, id string, err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, svg.ErrBounds):
		return &APIError{
			Status:  http.StatusNotFound,
			Code:    "OUT_OF_RANGE",
			Message: fmt.Sprintf("%s element not found: %s", resource, id),
			Details: err.Error(),
		}
	case errors.Is(err, svg.ErrUnknownKind):
		return NewBadRequestError("unknown element kind", err)
	case errors.Is(err, svg.ErrParse):
		return NewUnprocessableError("PARSE_ERROR", "document could not be parsed", err)
	case errors.Is(err, svg.ErrSchema):
		return NewUnprocessableError("SCHEMA_VIOLATION", "document does not match the schema", err)
	case errors.Is(err, svg.ErrStructure):
		return NewUnprocessableError("STRUCTURE_VIOLATION", "document breaks a structural rule", err)
	case errors.Is(err, session.ErrNotOpen), errors.Is(err, session.ErrFileNotFound), errors.Is(err, catalog.ErrNotFound):
		return NewNotFoundError(resource, id)
	case errors.Is(err, session.ErrTooManySessions):
		return NewServiceUnavailableError("too many documents open; save or close one first")
	case errors.Is(err, svg.ErrIO):
		return NewInternalError("document i/o failed", err)
	}
	return NewInternalError("unexpected document error", err)
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
		}
		// In development, include error details
		if isDevelopment() {
			apiErr.Details = err.Error()
		}
	}

	// Send JSON response
	if !c.Response().Committed {
		c.JSON(apiErr.Status, apiErr)
	}
}

// ShowErrorDetails controls whether unexpected errors expose their text.
var ShowErrorDetails = true

func isDevelopment() bool {
	return ShowErrorDetails
}

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
