package fetch

import (
	"errors"
	"fmt"
)

// Policy violations detected before or during a fetch. All are permanent for
// the URL.
var (
	ErrBlockedByPolicy = errors.New("blocked by fetch policy")
	ErrBodyTooLarge    = fmt.Errorf("%w: body exceeds byte cap", ErrBlockedByPolicy)
	ErrBadContentType  = fmt.Errorf("%w: unsupported content type", ErrBlockedByPolicy)
	ErrRedirectCycle   = fmt.Errorf("%w: redirect cycle", ErrBlockedByPolicy)
	ErrTooManyHops     = fmt.Errorf("%w: too many redirects", ErrBlockedByPolicy)
	ErrSchemeDowngrade = fmt.Errorf("%w: refusing https to http redirect", ErrBlockedByPolicy)
)

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d from %s", e.StatusCode, e.URL)
}

// Client reports a 4xx status.
func (e *HTTPStatusError) Client() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Retryable reports whether the status warrants the proxy ladder. 429 and
// 5xx are retryable; other 4xx are permanent.
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ConnectionError wraps transport-level failures (dial, TLS, reset,
// timeout). Always retryable.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RenderError reports a failed browser render of an otherwise fetched page.
type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render of %s failed: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// retryable classifies an error for the fallback ladder: connection
// failures, 429 and 5xx move to the next tier; everything else stops.
func retryable(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable() || statusErr.StatusCode == 403
	}
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
