package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindValidation  Kind = "validation"
	KindPersistence Kind = "persistence"
	KindIntegrity   Kind = "integrity"
)

// Error is the typed failure returned by every engine operation.
type Error struct {
	Kind   Kind
	Op     string
	Issues []string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if len(e.Issues) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Issues, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable is false for every kind except persistence failures.
func (e *Error) Retryable() bool {
	return e != nil && e.Kind == KindPersistence
}

func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Issues: []string{what + " not found"}}
}

func Validation(op string, issues ...string) error {
	return &Error{Kind: KindValidation, Op: op, Issues: issues}
}

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

func Integrity(op string, format string, args ...interface{}) error {
	return &Error{Kind: KindIntegrity, Op: op, Issues: []string{fmt.Sprintf(format, args...)}}
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// IssuesOf returns the issue list carried by err, if any.
func IssuesOf(err error) []string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Issues
	}
	return nil
}

// IsRetryable reports whether a store call failing with err may be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return true
}
