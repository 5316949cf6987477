package certs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Certificate is the issuance result the provisioning engine records.
type Certificate struct {
	Domain    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	CertPEM   []byte
	KeyPEM    []byte
}

// Issuer is the external certificate authority capability. Domain-control
// validation happens out of band; callers must bound the call with a
// context timeout.
type Issuer interface {
	Issue(ctx context.Context, domainName string) (*Certificate, error)
}

// IssuanceError classifies a failed issuance attempt. Retryable failures
// (timeouts, rate limits, transient network errors) are eligible for
// backoff and retry; permanent failures (CA rejected validation, malformed
// request) are not.
type IssuanceError struct {
	Reason    string
	Retryable bool
	Err       error
}

func (e *IssuanceError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	if e.Err != nil {
		return fmt.Sprintf("certs: %s issuance failure: %s: %v", kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("certs: %s issuance failure: %s", kind, e.Reason)
}

func (e *IssuanceError) Unwrap() error { return e.Err }

// Permanent wraps err as a non-retryable issuance failure.
func Permanent(reason string, err error) *IssuanceError {
	return &IssuanceError{Reason: reason, Retryable: false, Err: err}
}

// Transient wraps err as a retryable issuance failure.
func Transient(reason string, err error) *IssuanceError {
	return &IssuanceError{Reason: reason, Retryable: true, Err: err}
}

// Retryable reports whether err should be retried. Unclassified errors are
// treated as retryable so that infrastructure hiccups never burn a domain
// permanently; context deadline and cancellation are always retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var ie *IssuanceError
	if errors.As(err, &ie) {
		return ie.Retryable
	}

	return true
}

// FailureReason extracts a short operator-facing reason from err.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}

	var ie *IssuanceError
	if errors.As(err, &ie) {
		return ie.Reason
	}

	return err.Error()
}
