// Package faults defines the stable error kinds surfaced by every core
// operation. A kind is a sentinel that callers test with errors.Is; the
// wrapped text carries the human-readable reason.
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound: a referenced room, user or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden: the actor lacks the required relationship (not a
	// member, not the creator, not the sender).
	ErrForbidden = errors.New("forbidden")
	// ErrConflict: the operation would violate an invariant (duplicate
	// membership, double pin, mutating a deleted message, inactive room).
	ErrConflict = errors.New("conflict")
	// ErrInvalid: malformed input rejected before any state change.
	ErrInvalid = errors.New("invalid")
)

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrForbidden}, args...)...)
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// HTTPStatus maps an error kind to its HTTP status code. Anything that is
// not one of the four kinds is treated as an internal failure.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
