// Package cloud is the client for the document-storage cloud: it exchanges a
// device token for a session token, reserves an upload slot, puts the
// document bundle to the returned blob URL and commits the visible name.
//
// Protocol failures (unexpected status, malformed or negative responses,
// timeouts) are returned as errors wrapping ErrProtocol. Any other error
// (connection refused, DNS failure, canceled context) is a transport fault
// and is returned unclassified.
package cloud

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrProtocol is the root of every protocol-level failure.
var ErrProtocol = errors.New("cloud: protocol failure")

// Protocol failure classes. All of them match errors.Is(err, ErrProtocol).
var (
	ErrTimeout        = fmt.Errorf("%w: request timed out", ErrProtocol)
	ErrAuthFailed     = fmt.Errorf("%w: token exchange failed", ErrProtocol)
	ErrUnauthorized   = fmt.Errorf("%w: session token rejected", ErrProtocol)
	ErrUploadRejected = fmt.Errorf("%w: upload request rejected", ErrProtocol)
	ErrBlobRejected   = fmt.Errorf("%w: blob upload rejected", ErrProtocol)
)

// ErrFileNotFound is returned by UploadFile when the path is not an existing
// regular file. No request is made in that case.
var ErrFileNotFound = errors.New("cloud: file not found")

// StatusError records an unexpected HTTP status for one protocol step.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error // protocol class, for errors.Is()
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("cloud: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
	}

	return fmt.Sprintf("cloud: %s: HTTP %d", e.Op, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// isRetryable reports whether the given HTTP status code should be retried
// by the transport loop. 401 is handled by the protocol layer instead.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
