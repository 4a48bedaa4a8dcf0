package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
	"time"
)

func TestRateLimitError(t *testing.T) {
	err := NewRateLimitError("slow down")

	if err.Error() != "slow down" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "slow down")
	}

	if !IsRateLimitError(fmt.Errorf("fetching: %w", err)) {
		t.Fatalf("IsRateLimitError returned false for wrapped RateLimitError")
	}

	if IsRateLimitError(stdErrors.New("other")) {
		t.Fatalf("IsRateLimitError returned true for plain error")
	}
}

func TestRateLimitErrorWithRetry(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{name: "zero", duration: 0, want: "rate limited"},
		{name: "seconds", duration: 30 * time.Second, want: "rate limited (retry after 30s)"},
		{name: "minutes", duration: 2 * time.Minute, want: "rate limited (retry after 2m0s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRateLimitErrorWithRetry("rate limited", tt.duration)
			if err.Error() != tt.want {
				t.Fatalf("Error message = %q, want %q", err.Error(), tt.want)
			}
			if err.RetryAfter != tt.duration {
				t.Fatalf("RetryAfter = %v, want %v", err.RetryAfter, tt.duration)
			}
		})
	}
}

func TestSourceError(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := NewSourceError("googlebooks", "search", 0, cause)

	want := "googlebooks search failed: connection refused"
	if err.Error() != want {
		t.Fatalf("Error message = %q, want %q", err.Error(), want)
	}

	if !stdErrors.Is(err, cause) {
		t.Fatalf("SourceError does not unwrap to its cause")
	}

	withStatus := NewSourceError("isbndb", "lookup", 503, stdErrors.New("unavailable"))
	want = "isbndb lookup failed (HTTP 503): unavailable"
	if withStatus.Error() != want {
		t.Fatalf("Error message = %q, want %q", withStatus.Error(), want)
	}

	if !IsSourceError(stdErrors.Join(withStatus, stdErrors.New("context"))) {
		t.Fatalf("IsSourceError returned false for joined SourceError")
	}
}

func TestSourceErrorWrapsRateLimit(t *testing.T) {
	err := NewSourceError("openlibrary", "search", 429, NewRateLimitErrorWithRetry("too many requests", time.Second))

	if !IsRateLimitError(err) {
		t.Fatalf("IsRateLimitError returned false for SourceError wrapping a RateLimitError")
	}
}

func TestStopProcessingError(t *testing.T) {
	err := NewStopProcessingError("user stopped")

	if err.Error() != "user stopped" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "user stopped")
	}

	if !IsStopProcessingError(stdErrors.Join(err)) {
		t.Fatalf("IsStopProcessingError returned false for wrapped StopProcessingError")
	}
}
