package wallet

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is a local input rejection raised before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthError means the session token is missing, invalid or expired, or the credentials were rejected.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError means the request never got a response from the service.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServiceError means the service was reached and answered with a failure.
// Message is shown to the user verbatim.
type ServiceError struct {
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

var (
	ErrInvalidAmount       = &ValidationError{Field: "amount", Message: "invalid amount"}
	ErrInsufficientBalance = &ValidationError{Field: "amount", Message: "insufficient balance"}

	ErrNoToken = &AuthError{Reason: "no session token"}
)

// NeedsLogin reports whether err should send the user back to the login screen.
func NeedsLogin(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// UserMessage returns the text to put in front of the user for err.
func UserMessage(err error) string {
	var (
		validationErr *ValidationError
		serviceErr    *ServiceError
		networkErr    *NetworkError
		authErr       *AuthError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &serviceErr):
		if serviceErr.Message != "" {
			return serviceErr.Message
		}
		return http.StatusText(serviceErr.Status)
	case errors.As(err, &networkErr):
		return "Unable to reach the server. Please try again."
	case errors.As(err, &authErr):
		return "Your session has ended. Please log in again."
	default:
		return "Something went wrong."
	}
}
