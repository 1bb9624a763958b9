package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTerminalState       = errors.New("contract is in a terminal state")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrConflict            = errors.New("concurrent modification")
	ErrTransport           = errors.New("upstream unavailable")
	ErrProviderRejected    = errors.New("provider rejected the request")
	ErrExternalSyncWarning = errors.New("external sync warning")
)

// Error codes rendered to API callers
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeBadRequest        = "BAD_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeTerminalState     = "TERMINAL_STATE"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConflict          = "CONFLICT"
	CodeTransport         = "TRANSPORT_ERROR"
	CodeProviderRejected  = "PROVIDER_REJECTED"
	CodeSyncWarning       = "EXTERNAL_SYNC_WARNING"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may safely retry the same request.
func (e *AppError) Retryable() bool {
	return errors.Is(e.Err, ErrTransport) || errors.Is(e.Err, ErrConflict)
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// AsAppError extracts an *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func Validation(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeValidation, message, ErrValidation)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message, ErrValidation)
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func Unauthenticated(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthenticated, message, ErrUnauthenticated)
}

// Unauthorized is returned when an authenticated caller acts on a contract
// they are not a party to, or under a role they do not hold.
func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeUnauthorized, message, ErrUnauthorized)
}

func TerminalState(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeTerminalState, message, ErrTerminalState)
}

func InvalidTransition(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeInvalidTransition, message, ErrInvalidTransition)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message, ErrConflict)
}

func Transport(message string, err error) *AppError {
	return NewAppError(http.StatusServiceUnavailable, CodeTransport, message, errors.Join(ErrTransport, err))
}

// ProviderRejected is a non-retryable answer from the e-signature provider.
func ProviderRejected(message string) *AppError {
	return NewAppError(http.StatusBadGateway, CodeProviderRejected, message, ErrProviderRejected)
}

func ExternalSyncWarning(message string) *AppError {
	return NewAppError(http.StatusOK, CodeSyncWarning, message, ErrExternalSyncWarning)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternal, "internal server error", err)
}
