package processor

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a processor failure.
type ErrorKind string

const (
	// KindUnavailable covers transport failures, timeouts, rate limits and
	// processor 5xx responses. Retrying with the same idempotency key is safe.
	KindUnavailable ErrorKind = "unavailable"
	// KindRejected means the processor understood and refused the request
	// (declined card, insufficient funds, invalid parameters).
	KindRejected ErrorKind = "rejected"
	// KindNotFound means a referenced remote object does not exist.
	KindNotFound ErrorKind = "not_found"
)

// Error is the only error type that crosses the processor boundary.
type Error struct {
	Kind ErrorKind
	// Op is the client operation that failed, e.g. "CreatePaymentIntent".
	Op string
	// Code is the processor's machine-readable error code when one exists.
	Code string
	// DeclineCode carries the card network's decline reason, if any.
	DeclineCode string
	// Message is safe to show to an end user for KindRejected errors.
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Unavailable builds a retryable transport-level error.
func Unavailable(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

// Rejected builds a definitive processor refusal.
func Rejected(op, code, declineCode, message string) *Error {
	return &Error{Kind: KindRejected, Op: op, Code: code, DeclineCode: declineCode, Message: message}
}

// NotFound builds a missing-remote-object error.
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// IsUnavailable reports whether err is a retryable processor failure.
func IsUnavailable(err error) bool { return hasKind(err, KindUnavailable) }

// IsRejected reports whether err is a definitive processor refusal.
func IsRejected(err error) bool { return hasKind(err, KindRejected) }

// IsNotFound reports whether err references a missing remote object.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

func hasKind(err error, kind ErrorKind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
