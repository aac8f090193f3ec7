// Package resilience retries narrative completion calls that fail for
// transient reasons (rate limits, overloads, network faults).
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"overloaded_error",
	"rate_limit_error",
}

// IsTransient reports whether err, or any error in its chain, is worth
// retrying: an explicit TransientError, an API error with a retryable
// status, a network timeout or reset, or a known transient message.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return IsTransientHTTPStatus(apiErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is retryable.
// 529 is the Anthropic API's overloaded status.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	default:
		return false
	}
}
