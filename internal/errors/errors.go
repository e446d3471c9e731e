// Package errors provides the structured error type shared by all memmcp
// components, plus retry helpers for transient failures.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for dispatch decisions and batch result
// marshaling. Kinds are stable strings that cross the tool boundary.
type Kind string

const (
	// KindNotFound indicates a file, section, marker, or row does not exist.
	KindNotFound Kind = "NotFound"

	// KindAlreadyExists indicates a create collided with an existing path.
	KindAlreadyExists Kind = "AlreadyExists"

	// KindInvalidArgument indicates the caller supplied a bad value.
	KindInvalidArgument Kind = "InvalidArgument"

	// KindConflict indicates concurrent operations collided (e.g. a sync
	// superseded by a newer hash).
	KindConflict Kind = "Conflict"

	// KindProviderUnavailable indicates a transient embedding provider
	// failure. Retryable.
	KindProviderUnavailable Kind = "ProviderUnavailable"

	// KindProviderInvalid indicates a permanent provider failure such as a
	// bad API key or a dimension mismatch.
	KindProviderInvalid Kind = "ProviderInvalid"

	// KindStorageUnavailable indicates the index store cannot be reached.
	// Retryable.
	KindStorageUnavailable Kind = "StorageUnavailable"

	// KindInternal indicates an unexpected failure.
	KindInternal Kind = "Internal"

	// KindCancelled indicates the operation was cancelled or timed out.
	KindCancelled Kind = "Cancelled"

	// KindDegradedMode indicates a hybrid operation fell back to a single
	// modality. Informational; carried on results, not usually returned.
	KindDegradedMode Kind = "DegradedMode"
)

// Error is the structured error type for memmcp.
type Error struct {
	// Kind is the error classification.
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind, enabling errors.Is with a kind sentinel.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithDetail adds a key-value detail to the error. Returns the error for
// method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that records cause. Returns nil for a nil cause so
// call sites can wrap unconditionally.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the kind from an error chain. Context cancellation maps
// to KindCancelled; anything unclassified maps to KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether the operation that produced err may be
// retried. Only transient provider and storage failures qualify; file I/O
// and argument errors are never retried silently.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindProviderUnavailable, KindStorageUnavailable:
		return true
	default:
		return false
	}
}

// MessageOf returns the message of a structured error, or err.Error() for
// plain errors. Used when marshaling batch item results.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
