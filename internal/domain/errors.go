package domain

import (
	"fmt"
	"net/http"
)

// AuthError is a client-facing failure with a stable code and message.
// Messages never reveal whether an email exists or why exactly a token was
// rejected; codes carry the distinction for diagnostics.
type AuthError struct {
	Code    string
	Message string
	Status  int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	// ErrInvalidCredentials covers every login failure, including unknown
	// email, so the response does not act as an account oracle.
	ErrInvalidCredentials = &AuthError{
		Code:    "invalid_credentials",
		Message: "Incorrect email or password.",
		Status:  http.StatusBadRequest,
	}

	// ErrInvalidRefreshToken covers signature, expiry, and mismatch failures
	// uniformly.
	ErrInvalidRefreshToken = &AuthError{
		Code:    "invalid_token",
		Message: "Invalid refresh token.",
		Status:  http.StatusUnauthorized,
	}

	// ErrRefreshTokenNotFound shares the user-visible message with
	// ErrInvalidRefreshToken; only the code differs.
	ErrRefreshTokenNotFound = &AuthError{
		Code:    "record_not_found",
		Message: "Invalid refresh token.",
		Status:  http.StatusNotFound,
	}

	ErrInvalidAccessToken = &AuthError{
		Code:    "invalid_token",
		Message: "Invalid access token. Please sign in again.",
		Status:  http.StatusUnauthorized,
	}

	ErrMissingToken = &AuthError{
		Code:    "missing_token",
		Message: "Authentication token required. Please sign in.",
		Status:  http.StatusUnauthorized,
	}

	ErrUserNotFound = &AuthError{
		Code:    "user_not_found",
		Message: "User not found.",
		Status:  http.StatusNotFound,
	}

	ErrEmailTaken = &AuthError{
		Code:    "email_conflict",
		Message: "Email is already registered.",
		Status:  http.StatusConflict,
	}
)

// NewValidationError reports malformed client input.
func NewValidationError(message string) *AuthError {
	return &AuthError{
		Code:    "validation_error",
		Message: message,
		Status:  http.StatusBadRequest,
	}
}
