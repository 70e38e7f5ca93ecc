package authcore

import (
	"errors"
	"net/http"
)

// Error kinds returned by the core. Callers match them with errors.Is.
var (
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInput       = errors.New("invalid input")
	ErrProviderDisabled   = errors.New("provider not enabled")
)

// Error codes used in JSON error bodies
const (
	ErrCodeDuplicateAccount   = "duplicate_account"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeAccountNotFound    = "account_not_found"
	ErrCodeInvalidToken       = "invalid_token"
	ErrCodeInvalidInput       = "invalid_input"
	ErrCodeProviderDisabled   = "provider_disabled"
	ErrCodeServerError        = "server_error"
)

// ErrorCode returns the wire code for an error kind
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateAccount):
		return ErrCodeDuplicateAccount
	case errors.Is(err, ErrInvalidCredentials):
		return ErrCodeInvalidCredentials
	case errors.Is(err, ErrAccountNotFound):
		return ErrCodeAccountNotFound
	case errors.Is(err, ErrInvalidToken):
		return ErrCodeInvalidToken
	case errors.Is(err, ErrInvalidInput):
		return ErrCodeInvalidInput
	case errors.Is(err, ErrProviderDisabled):
		return ErrCodeProviderDisabled
	default:
		return ErrCodeServerError
	}
}

// HTTPStatus maps an error kind onto an HTTP status code
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrProviderDisabled):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message that is safe to show to the caller.
// Internal failures are reduced to a generic string.
func PublicMessage(err error) string {
	switch ErrorCode(err) {
	case ErrCodeDuplicateAccount:
		return "An account with this identity already exists"
	case ErrCodeInvalidCredentials:
		return "Invalid credentials"
	case ErrCodeAccountNotFound:
		return "Account not found"
	case ErrCodeInvalidToken:
		return "Invalid or expired token"
	case ErrCodeProviderDisabled:
		return "Sign-in provider not available"
	case ErrCodeInvalidInput:
		var verr *ValidationError
		if errors.As(err, &verr) {
			return verr.Message
		}
		return err.Error()
	default:
		return "An internal error occurred"
	}
}
