package model

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindNone      = ErrorKind("")
	ErrorKindTransport = ErrorKind("transport")
	ErrorKindUpstream  = ErrorKind("upstream")
	ErrorKindMalformed = ErrorKind("malformed")
)

var (
	ErrEmptyCompletion = errors.New("completion has no text")
	ErrNoMessages      = errors.New("request has no messages")
)

// CompletionError tags a failed turn with the class of failure. Users see the
// same placeholder for every kind.
type CompletionError struct {
	Kind ErrorKind
	Err  error
}

func NewCompletionError(kind ErrorKind, err error) *CompletionError {
	return &CompletionError{Kind: kind, Err: err}
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind carried by err, ErrorKindTransport for untagged
// errors and ErrorKindNone for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var completionErr *CompletionError
	if errors.As(err, &completionErr) {
		return completionErr.Kind
	}
	return ErrorKindTransport
}
