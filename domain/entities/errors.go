package entities

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStaleReference marks an element handle that was detached from the
	// document while it was being evaluated. Backends wrap their own
	// "element no longer attached" failures with it.
	ErrStaleReference = errors.New("stale element reference")

	// ErrAmbiguousResult is returned when more than one candidate satisfies a
	// query that requires a unique answer.
	ErrAmbiguousResult = errors.New("ambiguous result")

	// ErrNotFound is returned only by callers that explicitly ask for exactly
	// one element. Empty result sets are never an error on their own.
	ErrNotFound = errors.New("element not found")

	// ErrDownloadTimeout is matched by every DownloadTimeoutError.
	ErrDownloadTimeout = errors.New("download timeout")
)

// DownloadTimeoutError reports a download expectation that was never met
type DownloadTimeoutError struct {
	Timeout time.Duration
	Pattern string
}

func (e *DownloadTimeoutError) Error() string {
	return fmt.Sprintf("no file matching %q finished downloading within %s", e.Pattern, e.Timeout)
}

// Is lets errors.Is(err, ErrDownloadTimeout) match
func (e *DownloadTimeoutError) Is(target error) bool {
	return target == ErrDownloadTimeout
}

// Stale wraps a backend error so that it is classified as a stale reference
func Stale(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStaleReference, err)
}

// Ambiguous builds an ErrAmbiguousResult carrying what was ambiguous
func Ambiguous(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrAmbiguousResult, fmt.Sprintf(format, args...))
}

// IsStale reports whether err was classified as a stale reference
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleReference)
}
