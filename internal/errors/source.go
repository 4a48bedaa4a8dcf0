package errors

import (
	stdErrors "errors"
	"fmt"
)

// SourceError describes a failed call to an external catalog.
type SourceError struct {
	Source     string
	Operation  string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (HTTP %d): %v", e.Source, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Source, e.Operation, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a SourceError wrapping err
func NewSourceError(source, operation string, statusCode int, err error) *SourceError {
	return &SourceError{
		Source:     source,
		Operation:  operation,
		StatusCode: statusCode,
		Err:        err,
	}
}

// IsSourceError checks if error is a SourceError
func IsSourceError(err error) bool {
	var srcErr *SourceError
	return stdErrors.As(err, &srcErr)
}
