package service

import (
	"errors"

	"github.com/sifan077/shortng/internal/app/model"
)

// ErrorKind classifies user-facing failures.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindAuthorization
	KindNotFound
	KindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is a failure that is reported back to the caller in the shape
// expected by its request source.
type Error struct {
	Kind    ErrorKind
	Source  model.RequestSource
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, source model.RequestSource, msg string, cause error) *Error {
	return &Error{Kind: kind, Source: source, Message: msg, Err: cause}
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
