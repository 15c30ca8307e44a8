package model

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or out-of-range input. It is a
// request-level error (HTTP 400).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// AsValidationError unwraps err to a ValidationError, if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// GeocodingError reports that an address could not be resolved by any
// provider. Request-level (HTTP 500).
type GeocodingError struct {
	Address string
	Reason  string
}

func (e *GeocodingError) Error() string {
	return fmt.Sprintf("geocoding %q: %s", e.Address, e.Reason)
}

// AsGeocodingError unwraps err to a GeocodingError, if it is one.
func AsGeocodingError(err error) (*GeocodingError, bool) {
	var ge *GeocodingError
	ok := errors.As(err, &ge)
	return ge, ok
}

// Auth and rate-limit sentinels, matched with errors.Is by the HTTP layer.
var (
	ErrMissingAPIKey          = errors.New("auth: missing API key")
	ErrInvalidAPIKey          = errors.New("auth: invalid API key")
	ErrInsufficientPermission = errors.New("auth: insufficient permission")
	ErrRateLimited            = errors.New("auth: rate limit exceeded")
)
