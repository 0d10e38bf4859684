package apperr

import (
	"errors"
	"fmt"
)

// Sentinels for the failure classes the service distinguishes. Handlers
// map these onto HTTP statuses; everything below the HTTP layer speaks
// in terms of this package.
var (
	// ErrNotFound is a confirmed absence: the store answered and the
	// record is not there.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable means the store could not answer at all.
	// Callers with a secondary read path may fall back on this one,
	// never on ErrNotFound.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConflict is a uniqueness-constraint refusal, safe to retry.
	ErrConflict = errors.New("conflict")
	// ErrUnauthenticated covers missing or unverifiable credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenMalformed  = errors.New("token malformed")
	// ErrProviderNotConfigured means client credentials are absent for
	// a provider that is otherwise supported.
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrInvalidArgument       = errors.New("invalid argument")
)

// Error attaches an HTTP status and a stable machine code to an
// underlying error.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}
