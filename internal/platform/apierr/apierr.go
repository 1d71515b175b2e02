package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a request failure. The HTTP layer maps each kind to exactly one
// status code; nothing else inspects error strings.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindUnknownCategory     Kind = "unknown_category"
	KindUnsupportedService  Kind = "unsupported_service_type"
	KindGeocodeFailure      Kind = "geocode_failure"
	KindIndicatorResolution Kind = "indicator_resolution_failure"
	KindUnauthorized        Kind = "unauthorized"
	KindInternal            Kind = "internal_prediction_error"
)

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindUnknownCategory, KindUnsupportedService:
		return http.StatusBadRequest
	case KindGeocodeFailure, KindIndicatorResolution:
		return http.StatusBadGateway
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Public reports whether the error message may be shown to the caller verbatim.
// Provider failures wrap transport errors and upstream bodies, so they are not.
func (k Kind) Public() bool {
	switch k {
	case KindInternal, KindGeocodeFailure, KindIndicatorResolution:
		return false
	default:
		return true
	}
}

type Error struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Validation builds a validation error naming the offending field.
func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Err: fmt.Errorf(format, args...)}
}

// WithField returns a copy of err tagged with field.
func WithField(kind Kind, field string, err error) *Error {
	return &Error{Kind: kind, Field: field, Err: err}
}

// As extracts an *Error from err. Errors that carry no kind are treated as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Err: err}
}
