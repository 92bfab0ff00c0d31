// Package apperr defines the error kinds surfaced to the UI layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindLoad             Kind = "LoadError"
	KindEmbeddingService Kind = "EmbeddingServiceError"
	KindPersistence      Kind = "PersistenceError"
	KindModelAPI         Kind = "ModelAPIError"
	KindConfiguration    Kind = "ConfigurationError"
	KindRequestTimeout   Kind = "RequestTimeout"
)

// Sentinels, one per kind. Match with errors.Is.
var (
	ErrLoad             = &Error{Kind: KindLoad}
	ErrEmbeddingService = &Error{Kind: KindEmbeddingService}
	ErrPersistence      = &Error{Kind: KindPersistence}
	ErrModelAPI         = &Error{Kind: KindModelAPI}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrRequestTimeout   = &Error{Kind: KindRequestTimeout}
)

// Error is a classified failure.
type Error struct {
	Kind      Kind
	Op        string
	Err       error
	retryable bool
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool { return e.retryable }

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transient wraps err as a retryable failure.
func Transient(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err, retryable: true}
}

// Configuration builds a ConfigurationError from a format string.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsRetryable reports whether err carries a retryable classification.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.retryable
	}
	return false
}

// FromContext maps an expired deadline to RequestTimeout and otherwise wraps
// err with the fallback kind. Errors that are already classified pass through.
func FromContext(ctx context.Context, fallback Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return New(KindRequestTimeout, op, err)
	}
	if _, ok := KindOf(err); ok {
		return err
	}
	return New(fallback, op, err)
}
