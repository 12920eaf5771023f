package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind partitions upstream failures by how the caller must react.
type ErrorKind string

const (
	// KindCredentialMissing means the protocol requires a credential that the
	// provider config does not carry. Fails fast, no network attempt.
	KindCredentialMissing ErrorKind = "credential_missing"
	// KindTransient covers timeouts, connection resets and HTTP 429/502/503/504.
	// Retried with bounded exponential backoff.
	KindTransient ErrorKind = "transient_network"
	// KindPermanent covers 401/403/404 and other non-retryable 4xx.
	KindPermanent ErrorKind = "permanent_request"
	// KindMalformedResponse means the upstream answered with something that is
	// not the expected structure. Treated as an empty result, never fatal to
	// the enclosing batch.
	KindMalformedResponse ErrorKind = "malformed_response"
	// KindCancelled propagates caller cancellation. Never retried.
	KindCancelled ErrorKind = "cancelled"
)

// Error is the typed error every gateway operation returns.
type Error struct {
	Kind       ErrorKind
	Op         string // "list_models", "complete_text", ...
	Provider   string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gateway %s (%s): %s", e.Op, e.Provider, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s status=%d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the error kind, or "" for non-gateway errors.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// IsTransient reports whether the error should be retried.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsCancelled reports whether the error is a propagated cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// kindForStatus classifies an HTTP error status.
func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindTransient
	}
	if status >= 500 {
		return KindTransient
	}
	return KindPermanent
}
