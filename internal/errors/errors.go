// Package errors provides shared error types used across the processing
// pipeline. This package exists to avoid import cycles between the
// orchestrator and its subpackages.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a processing failure. Every skip or failure reported by the
// pipeline carries exactly one Kind so callers can count and log it without
// string matching.
type Kind int

const (
	// KindUnknown is the zero value; errors without an explicit kind.
	KindUnknown Kind = iota
	// KindIncompleteArchive marks a multi-volume group that failed
	// completeness validation. Never extracted.
	KindIncompleteArchive
	// KindExtractionFailure marks an external archiver failure or timeout.
	KindExtractionFailure
	// KindRelocationFailure marks a move/copy that failed even after all
	// fallback strategies.
	KindRelocationFailure
	// KindReadOnlyFilesystem is a recovered sub-kind of relocation failure:
	// the content reached the destination but the source could not be removed.
	KindReadOnlyFilesystem
	// KindPathResolutionFailure marks a relative-path computation failure,
	// always recovered locally via the last-segment fallback.
	KindPathResolutionFailure
)

// String returns the kind name used in log entries.
func (k Kind) String() string {
	switch k {
	case KindIncompleteArchive:
		return "incomplete_archive"
	case KindExtractionFailure:
		return "extraction_failure"
	case KindRelocationFailure:
		return "relocation_failure"
	case KindReadOnlyFilesystem:
		return "read_only_filesystem"
	case KindPathResolutionFailure:
		return "path_resolution_failure"
	default:
		return "unknown"
	}
}

// ProcessError is an error with a processing Kind attached.
type ProcessError struct {
	kind    Kind
	message string
	cause   error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying cause error for error unwrapping.
func (e *ProcessError) Unwrap() error {
	return e.cause
}

// Kind returns the classification of this error.
func (e *ProcessError) Kind() Kind {
	return e.kind
}

// New creates a ProcessError with a kind, message and optional cause.
func New(kind Kind, message string, cause error) error {
	return &ProcessError{
		kind:    kind,
		message: message,
		cause:   cause,
	}
}

// Newf creates a ProcessError with a formatted message and no cause.
func Newf(kind Kind, format string, args ...any) error {
	return &ProcessError{
		kind:    kind,
		message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return &ProcessError{
		kind:    kind,
		message: message,
		cause:   cause,
	}
}

// KindOf returns the Kind of err, or KindUnknown if err carries none.
func KindOf(err error) Kind {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
