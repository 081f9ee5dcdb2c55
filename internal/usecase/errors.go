package usecase

import (
	"errors"
	"fmt"

	"offer-wizard/internal/integrations/platform"
)

type ErrorCode string

const (
	// ErrorInvalidInput covers client-side validation failures. No network
	// call is made for these; they are shown inline and the user retries.
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorUnauthorized terminates the session.
	ErrorUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrorNotFound covers data-absence conditions rendered as empty states.
	ErrorNotFound ErrorCode = "NOT_FOUND"
	ErrorUpstream ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// apiError classifies a platform client failure into the wizard taxonomy.
// 401s become session-terminating; everything else from the wire is an
// upstream error the user may retry manually.
func apiError(reason string, err error) *Error {
	if errors.Is(err, platform.ErrUnauthorized) {
		return newError(ErrorUnauthorized, reason, err)
	}
	return newError(ErrorUpstream, reason, err)
}

// CodeOf extracts the taxonomy code from any error, defaulting to
// ErrorInternal for errors that did not pass through this package.
func CodeOf(err error) ErrorCode {
	var ucErr *Error
	if errors.As(err, &ucErr) {
		return ucErr.Code
	}
	return ErrorInternal
}
