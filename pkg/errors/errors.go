package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Representation of errors raised while reconciling. These are
// divided into a small number of categories, essentially
// distinguished by what should happen to the message that caused
// them; i.e., is this error:
//  - a transient problem talking to AWS or Docker, so worth trying again?
//  - not going to work however many times it is redelivered?
type Error struct {
	Type Type
	// a message that can be printed out for the operator
	Help string
	// the underlying error that can be e.g., logged for developers to look at
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Type) + " error"
	}
	return e.Err.Error()
}

// Cause lets errors.Cause see through to the underlying error.
func (e *Error) Cause() error {
	return e.Err
}

type Type string

const (
	// The notification was not well-formed, or lacked a required field
	Validation Type = "validation"
	// The daemon was started with arguments that make no sense
	Configuration Type = "configuration"
	// The registry handed back a token that could not be decoded
	Credential Type = "credential"
	// A call to the queue, registry or cluster failed in a way that
	// might succeed later
	Transport Type = "transport"
	// The service was changed by someone else between listing and
	// updating it
	Conflict Type = "conflict"
	// The cluster refused to let us do the update
	Permission Type = "permission"
	// The thing mentioned does not exist
	Missing Type = "missing"
)

// New constructs an Error of the given type, with a formatted
// underlying error.
func New(t Type, format string, args ...interface{}) *Error {
	return &Error{Type: t, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err as being of type t. A nil err gives a nil
// result.
func Wrap(t Type, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Err: errors.Wrap(err, msg)}
}

// TypeOf returns the type of the first *Error found by unwrapping
// err, or the empty Type if there isn't one.
func TypeOf(err error) Type {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Type
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return ""
		}
		err = cause.Cause()
	}
	return ""
}

func IsType(err error, t Type) bool {
	return err != nil && TypeOf(err) == t
}

func IsMissing(err error) bool {
	return IsType(err, Missing)
}

// Retryable reports whether the message that led to err should be
// left on the queue to be redelivered. Transport failures may clear
// up. A conflict (stale version) is retried too, rather than dropped:
// the redelivered message is matched against a fresh listing, so it
// is applied to the new version, and the queue's redrive policy
// bounds how often that can happen. Errors without a type are not
// retried; the queue, registry and cluster clients type everything
// they return, so an untyped error is a bug that redelivery won't fix.
func Retryable(err error) bool {
	switch TypeOf(err) {
	case Transport, Conflict:
		return true
	default:
		return false
	}
}
