package httpx

import (
	"fmt"
	"time"
)

// ClientError is a permanent HTTP failure (bad request, auth, not found).
// Retrying cannot fix it, so the client fails immediately.
type ClientError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// ServerError is a transient HTTP failure (429 or 5xx). RetryAfter is the
// server-requested wait, zero when the Retry-After header was absent.
type ServerError struct {
	StatusCode int
	URL        string
	RetryAfter time.Duration
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// RetryExhaustedError reports that a transient failure persisted past the
// retry budget. Last is the error observed on the final attempt.
type RetryExhaustedError struct {
	Attempts int
	URL      string
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed for %s: %v", e.Attempts, e.URL, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }
