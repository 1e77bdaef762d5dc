package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindDependencyUnavailable
	KindStateConflict
	KindStoreFailure
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDependencyUnavailable:
		return "dependency_unavailable"
	case KindStateConflict:
		return "state_conflict"
	case KindStoreFailure:
		return "store_failure"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error is the typed error carried between layers. Transport code maps
// its Kind to a status code, everything below only wraps and inspects it.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func Validation(format string, args ...any) error {
	return newf(KindValidation, nil, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(KindNotFound, nil, format, args...)
}

func StateConflict(format string, args ...any) error {
	return newf(KindStateConflict, nil, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return newf(KindUnauthorized, nil, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newf(KindForbidden, nil, format, args...)
}

func DependencyUnavailable(dependency string, err error) error {
	return newf(KindDependencyUnavailable, err, "%s unavailable: %v", dependency, err)
}

func StoreFailure(op string, err error) error {
	return newf(KindStoreFailure, err, "%s: %v", op, err)
}

// InsufficientAvailabilityError reports a line whose requested quantity
// exceeds what the referenced product has in stock.
type InsufficientAvailabilityError struct {
	ProductID string
	Available int64
	Requested int64
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf("insufficient availability for %s", e.ProductID)
}

func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var availErr *InsufficientAvailabilityError
	if errors.As(err, &availErr) {
		return KindValidation
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindStateConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides internal details of 5xx errors from clients.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindDependencyUnavailable:
		return "dependency unavailable"
	case KindStoreFailure, KindUnknown:
		return "internal error"
	default:
		return err.Error()
	}
}
