package errors

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestTypeOfSeesThroughWrapping(t *testing.T) {
	base := New(Validation, "missing field %q", "region")
	wrapped := pkgerrors.Wrap(pkgerrors.Wrap(base, "decoding"), "message 1")

	if got := TypeOf(wrapped); got != Validation {
		t.Errorf("expected type %q, got %q", Validation, got)
	}
	if !IsType(wrapped, Validation) {
		t.Error("expected wrapped error to be a validation error")
	}
	if pkgerrors.Cause(wrapped) != base.Err {
		t.Errorf("expected cause to be the underlying error, got %v", pkgerrors.Cause(wrapped))
	}
}

func TestTypeOfUntyped(t *testing.T) {
	if got := TypeOf(errors.New("boom")); got != "" {
		t.Errorf("expected no type, got %q", got)
	}
	if got := TypeOf(nil); got != "" {
		t.Errorf("expected no type for nil, got %q", got)
	}
	if IsMissing(nil) {
		t.Error("nil is not a missing error")
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(Transport, nil, "listing services"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWrapMessage(t *testing.T) {
	err := Wrap(Transport, errors.New("connection refused"), "listing services")
	if err.Error() != "listing services: connection refused" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	for _, c := range []struct {
		err       error
		retryable bool
	}{
		{New(Transport, "timeout"), true},
		{New(Conflict, "update out of sequence"), true},
		{errors.New("unclassified"), false},
		{pkgerrors.Wrap(New(Conflict, "stale"), "updating"), true},
		{New(Validation, "not JSON"), false},
		{New(Credential, "bad token"), false},
		{New(Permission, "forbidden"), false},
		{New(Missing, "no such service"), false},
	} {
		if got := Retryable(c.err); got != c.retryable {
			t.Errorf("%v: expected retryable=%v, got %v", c.err, c.retryable, got)
		}
	}
}

func TestZeroErrorMessage(t *testing.T) {
	e := &Error{Type: Conflict}
	if e.Error() != "conflict error" {
		t.Errorf("unexpected message %q", e.Error())
	}
}
