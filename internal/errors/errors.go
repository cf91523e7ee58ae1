package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// UnsupportedPlatformError means no scheme registrar exists for the running OS
	UnsupportedPlatformError ErrorType = "unsupported_platform_error"
	// RegistrationError means installing or removing the scheme handler failed
	RegistrationError ErrorType = "registration_error"
	// WaitCancelled means the callback wait was interrupted by the user
	WaitCancelled ErrorType = "wait_cancelled"
	// RelayDeliveryError means the relay could not hand the URL to the listener
	RelayDeliveryError ErrorType = "relay_delivery_error"
	// AuthenticationError represents authentication failures
	AuthenticationError ErrorType = "authentication_error"
	// AuthorizationError represents authorization failures
	AuthorizationError ErrorType = "authorization_error"
	// NetworkError represents network-related failures
	NetworkError ErrorType = "network_error"
	// ConfigurationError represents configuration problems
	ConfigurationError ErrorType = "configuration_error"
	// ValidationError represents input validation failures
	ValidationError ErrorType = "validation_error"
	// ServerError represents server-side failures
	ServerError ErrorType = "server_error"
	// TimeoutError represents timeout failures
	TimeoutError ErrorType = "timeout_error"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError of the same type. A target with a
// message only matches an error with the same message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Type != e.Type {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// New creates a new AppError
func New(errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   err,
	}
}

// Kind returns a message-less AppError usable as an errors.Is target.
func Kind(errorType ErrorType) *AppError {
	return &AppError{Type: errorType}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause records the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to an AppError
func (e *AppError) WithStatusCode(code int) *AppError {
	e.StatusCode = code
	return e
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// As is a convenience wrapper around errors.As
func As(err error, target **AppError) bool {
	return stderrors.As(err, target)
}

// Convenience constructors for common error types

// NewUnsupportedPlatformError creates an unsupported platform error
func NewUnsupportedPlatformError(goos string) *AppError {
	return New(UnsupportedPlatformError, "no URL scheme handler support for this platform").WithDetails(goos)
}

// NewRegistrationError wraps a failure to install or remove a scheme handler
func NewRegistrationError(err error, message string) *AppError {
	return Wrap(err, RegistrationError, message)
}

// NewWaitCancelledError wraps the cause of an interrupted callback wait
func NewWaitCancelledError(err error) *AppError {
	return Wrap(err, WaitCancelled, "waiting for the callback was cancelled")
}

// NewRelayDeliveryError wraps a failure to deliver the captured URL
func NewRelayDeliveryError(err error, message string) *AppError {
	return Wrap(err, RelayDeliveryError, message)
}

// NewAuthenticationError creates an authentication error
func NewAuthenticationError(message string) *AppError {
	return New(AuthenticationError, message).WithStatusCode(http.StatusUnauthorized)
}

// NewAuthorizationError creates an authorization error
func NewAuthorizationError(message string) *AppError {
	return New(AuthorizationError, message).WithStatusCode(http.StatusForbidden)
}

// NewNetworkError creates a network error
func NewNetworkError(message string) *AppError {
	return New(NetworkError, message).WithStatusCode(http.StatusServiceUnavailable)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *AppError {
	return New(ConfigurationError, message).WithStatusCode(http.StatusInternalServerError)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return New(ValidationError, message).WithStatusCode(http.StatusBadRequest)
}

// NewServerError creates a server error
func NewServerError(message string) *AppError {
	return New(ServerError, message).WithStatusCode(http.StatusInternalServerError)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string) *AppError {
	return New(TimeoutError, message).WithStatusCode(http.StatusRequestTimeout)
}

// FromHTTPStatus creates an AppError from an HTTP status code
func FromHTTPStatus(statusCode int, message string) *AppError {
	var errorType ErrorType

	switch {
	case statusCode == http.StatusUnauthorized:
		errorType = AuthenticationError
	case statusCode == http.StatusForbidden:
		errorType = AuthorizationError
	case statusCode >= 400 && statusCode < 500:
		errorType = ValidationError
	case statusCode >= 500:
		errorType = ServerError
	default:
		errorType = NetworkError
	}

	return New(errorType, message).WithStatusCode(statusCode)
}
