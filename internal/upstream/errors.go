package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an upstream failure. Timeout and server errors are
// transient and retried; the remaining kinds are deterministic and surfaced
// immediately.
type Kind string

const (
	KindTimeout           Kind = "timeout"
	KindRateLimited       Kind = "rate_limited"
	KindServerError       Kind = "server_error"
	KindAuthError         Kind = "auth_error"
	KindMalformedResponse Kind = "malformed_response"
)

// Error is a classified upstream failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

func newError(kind Kind, status int, message string, err error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, err: err}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind, true
	}
	return "", false
}

// Retryable reports whether a failure kind is transient.
func Retryable(kind Kind) bool {
	return kind == KindTimeout || kind == KindServerError
}

// classifyTransport maps transport-level failures to a kind.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, 0, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return newError(KindTimeout, 0, "request canceled", err)
	}
	type timeouter interface{ Timeout() bool }
	var te timeouter
	if errors.As(err, &te) && te.Timeout() {
		return newError(KindTimeout, 0, "request timed out", err)
	}
	return newError(KindServerError, 0, "upstream unreachable: "+err.Error(), err)
}

// classifyStatus maps a non-2xx HTTP status to a kind. Statuses outside the
// known transient set are deterministic rejections and never retried.
func classifyStatus(status int, message string) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(KindAuthError, status, message, nil)
	case status == http.StatusTooManyRequests:
		return newError(KindRateLimited, status, message, nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return newError(KindTimeout, status, message, nil)
	case status >= 500:
		return newError(KindServerError, status, message, nil)
	default:
		return newError(KindMalformedResponse, status, message, nil)
	}
}
