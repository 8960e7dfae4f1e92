package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error by failure domain.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindProviderAuth
	KindTransientBackend
	KindNoProviderEnabled
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindProviderAuth:
		return "provider_auth"
	case KindTransientBackend:
		return "transient_backend"
	case KindNoProviderEnabled:
		return "no_provider_enabled"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports kind equality so sentinels like ErrNoProviderEnabled match any
// AppError of the same kind.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// StatusCode maps the error kind to the HTTP status used at the API boundary.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindProviderAuth, KindNoProviderEnabled:
		return http.StatusServiceUnavailable
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Kind sentinels for errors.Is checks.
var (
	ErrNotFound          = &AppError{Kind: KindNotFound}
	ErrValidation        = &AppError{Kind: KindValidation}
	ErrProviderAuth      = &AppError{Kind: KindProviderAuth}
	ErrTransientBackend  = &AppError{Kind: KindTransientBackend}
	ErrNoProviderEnabled = &AppError{Kind: KindNoProviderEnabled}
	ErrConflict          = &AppError{Kind: KindConflict}
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Validation(message string, err error) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Err:     err,
	}
}

// ProviderAuth marks a rejected-credentials failure from a render or send
// backend. It is a configuration problem and must not be retried blindly.
func ProviderAuth(backend string, err error) *AppError {
	return &AppError{
		Kind:    KindProviderAuth,
		Message: fmt.Sprintf("%s could not authenticate", backend),
		Err:     err,
	}
}

// TransientBackend marks a timeout or generic backend failure that is safe to retry.
func TransientBackend(backend string, err error) *AppError {
	return &AppError{
		Kind:    KindTransientBackend,
		Message: fmt.Sprintf("%s failed", backend),
		Err:     err,
	}
}

func NoProviderEnabled(tenantID int64) *AppError {
	return &AppError{
		Kind:    KindNoProviderEnabled,
		Message: fmt.Sprintf("no delivery provider enabled for tenant %d", tenantID),
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// KindOf returns the kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientBackend
}

// StatusCode returns the HTTP status for err, defaulting to 500.
func StatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}

// ParseKind is the inverse of Kind.String. Unknown names map to KindInternal.
func ParseKind(name string) Kind {
	for k := KindInternal; k <= KindConflict; k++ {
		if k.String() == name {
			return k
		}
	}
	return KindInternal
}
