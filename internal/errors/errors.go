// Package errors provides structured errors for the ingestion pipeline.
// Errors carry a kind (which maps to the CLI exit behavior) and optional
// context, and wrap their cause for errors.Is/As interoperability.
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes a pipeline failure.
type Kind int

const (
	// KindInput - invalid repo path, clone failure. Surfaced to the caller
	// before the pipeline starts; exit code 1.
	KindInput Kind = iota
	// KindParse - malformed file or parser crash. Logged, run continues.
	KindParse
	// KindAdapter - missing endpoint slug or duplicate slug in a batch.
	KindAdapter
	// KindStore - graph backend write/read failure.
	KindStore
	// KindEnrichment - a tier of the enhancement cycle failed.
	KindEnrichment
	// KindLLM - timeout or schema violation from the LLM port.
	KindLLM
	// KindInternal - unexpected internal state; exit code 2.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindParse:
		return "parse"
	case KindAdapter:
		return "adapter"
	case KindStore:
		return "store"
	case KindEnrichment:
		return "enrichment"
	case KindLLM:
		return "llm"
	default:
		return "internal"
	}
}

// Error is a structured pipeline error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on kind, so errors.Is(err, &Error{Kind: KindStore}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithContext attaches a key/value pair to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error. Returns nil when err is nil.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Wrapf wraps an existing error with formatting. Returns nil when err is nil.
func Wrapf(err error, kind Kind, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// InputError creates an input-kind error (invalid path, clone failure).
func InputError(format string, args ...any) *Error {
	return Newf(KindInput, format, args...)
}

// StoreError wraps a graph backend failure.
func StoreError(err error, format string, args ...any) *Error {
	return Wrapf(err, KindStore, format, args...)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsInput reports whether err is an input-validation failure.
func IsInput(err error) bool { return err != nil && KindOf(err) == KindInput }
