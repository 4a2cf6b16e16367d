// Package errors provides structured error handling for the credential core.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authentication and authorization errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbiddenCSRF   Code = "FORBIDDEN_CSRF"
	CodeForbiddenRole   Code = "FORBIDDEN_ROLE"

	// Vault errors
	CodeKeyMismatch Code = "KEY_MISMATCH"

	// Provider errors
	CodeProviderError   Code = "PROVIDER_ERROR"
	CodeProviderTimeout Code = "PROVIDER_TIMEOUT"

	// Connection errors
	CodeConnectionNotFound Code = "CONNECTION_NOT_FOUND"
	CodeProviderUnknown    Code = "PROVIDER_UNKNOWN"
	CodeStateInvalid       Code = "STATE_INVALID"

	// Identity errors
	CodeIdentityEmptyUserID Code = "IDENTITY_EMPTY_USER_ID"
	CodeIdentityInvalidRole Code = "IDENTITY_INVALID_ROLE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps an error code to an HTTP status code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbiddenCSRF, CodeForbiddenRole:
		return http.StatusForbidden
	case CodeKeyMismatch:
		return http.StatusConflict
	case CodeProviderError:
		return http.StatusBadGateway
	case CodeProviderTimeout:
		return http.StatusGatewayTimeout
	case CodeConnectionNotFound, CodeNotFound, CodeProviderUnknown:
		return http.StatusNotFound
	case CodeStateInvalid, CodeIdentityEmptyUserID, CodeIdentityInvalidRole:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
