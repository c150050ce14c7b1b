package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error classifies a Firestore failure; it satisfies repositories.RepositoryError.
type Error struct {
	op   string
	err  error
	code codes.Code
}

func (e *Error) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) IsNotFound() bool { return e != nil && e.code == codes.NotFound }

func (e *Error) IsConflict() bool {
	if e == nil {
		return false
	}
	switch e.code {
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return true
	}
	return false
}

func (e *Error) IsUnavailable() bool {
	if e == nil {
		return false
	}
	switch e.code {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return true
	}
	return false
}

// NotFound builds a classified not-found error for lookups that use queries rather than
// document gets.
func NotFound(op string) error {
	return &Error{op: op, err: errors.New("document not found"), code: codes.NotFound}
}

// Conflict builds a classified conflict error, e.g. for a taken slug.
func Conflict(op, reason string) error {
	return &Error{op: op, err: errors.New(reason), code: codes.AlreadyExists}
}

// WrapError annotates err with op and its gRPC classification. Context errors pass through
// unchanged so callers can still match them with errors.Is.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return &Error{op: op, err: err, code: status.Code(err)}
}
