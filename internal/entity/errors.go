package entity

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies pipeline failures for callers.
type ErrorKind string

// Error kinds surfaced by the enrichment pipeline.
const (
	KindValidation  ErrorKind = "validation"
	KindRateLimited ErrorKind = "rate_limited"
	KindNotFound    ErrorKind = "not_found"
	KindExtraction  ErrorKind = "extraction"
	KindPersistence ErrorKind = "persistence"
	KindUpstream    ErrorKind = "upstream"
)

// Error is a classified pipeline error. RetryAfter is set only for
// rate-limit rejections.
type Error struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a classified error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewRateLimitError builds a rate-limit rejection carrying the
// remaining wait until the entity may be re-enriched.
func NewRateLimitError(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("enriched too recently, retry in %s", retryAfter.Round(time.Second)),
		RetryAfter: retryAfter,
	}
}

// KindOf extracts the error kind, defaulting to persistence for
// unclassified errors so callers never mistake a failure for success.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}
