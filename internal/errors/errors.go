package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthorized is returned when no credential was supplied.
	ErrUnauthorized = errors.New("authentication required")
	// ErrForbidden is returned when a credential was supplied but rejected, or the
	// caller does not own the resource it tries to change.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation error")
	// ErrDuplicateRequest is returned when the requester already has an open team
	// request for the same assignment.
	ErrDuplicateRequest = errors.New("an open team request already exists for this assignment")
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyClosed is returned when a team request is already in a terminal state.
	ErrAlreadyClosed = errors.New("team request is already closed")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailAlreadyRegistered is returned on signup with a taken email.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrStorageUnavailable is returned when object storage is not configured or
	// the token denylist cannot be written.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrMissingToken is returned by token verification when no token is presented.
	ErrMissingToken = errors.New("missing token")
	// ErrMalformedToken is returned when a token cannot be parsed or its signature
	// does not verify.
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrRevokedToken is returned when a token id is on the denylist.
	ErrRevokedToken = errors.New("token revoked")
)

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

// MapErrorToHTTP maps domain errors to HTTP errors. Wrapped errors keep their
// full message so callers see the detail that was attached on the way up,
// except token errors, which only expose the sentinel message.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	case errors.Is(err, ErrForbidden):
		code, message := forbiddenDetail(err)
		return NewHTTPError(http.StatusForbidden, message, code)
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, ErrDuplicateRequest):
		return NewHTTPError(http.StatusConflict, err.Error(), "DUPLICATE_REQUEST")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, ErrAlreadyClosed):
		return NewHTTPError(http.StatusConflict, err.Error(), "ALREADY_CLOSED")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrEmailAlreadyRegistered):
		return NewHTTPError(http.StatusConflict, ErrEmailAlreadyRegistered.Error(), "EMAIL_ALREADY_REGISTERED")
	case errors.Is(err, ErrStorageUnavailable):
		return NewHTTPError(http.StatusServiceUnavailable, err.Error(), "STORAGE_UNAVAILABLE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

func forbiddenDetail(err error) (code, message string) {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return "TOKEN_EXPIRED", ErrExpiredToken.Error()
	case errors.Is(err, ErrMalformedToken):
		return "TOKEN_MALFORMED", ErrMalformedToken.Error()
	case errors.Is(err, ErrRevokedToken):
		return "TOKEN_REVOKED", ErrRevokedToken.Error()
	default:
		return "FORBIDDEN", err.Error()
	}
}
