// Package apperr defines the gateway's error taxonomy. Callers wrap these
// sentinels with fmt.Errorf("%w: ...") and classify with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthenticated covers missing, invalid, or inactive tokens and an
	// unreachable introspection authority.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is a policy denial. PDP failures during a decision also
	// surface as ErrForbidden to the caller (fail closed).
	ErrForbidden = errors.New("forbidden")

	// ErrUnsupportedOperation means the verb has no mapping in a
	// closed-vocabulary backend.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInvalidArgument means a required mutation field is missing or empty.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstreamUnavailable means a PDP or store call failed. Decisions treat
	// it as a denial; mutations surface it loudly.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// HTTPStatus maps a taxonomy error to the status the gateway responds with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnsupportedOperation):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
