package certs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

// ACMEIssuer issues certificates through an ACME directory (Let's Encrypt
// by default) using HTTP-01 challenges. Issued certificates are cached on
// disk so restarts do not re-issue.
type ACMEIssuer struct {
	manager *autocert.Manager
}

// ACMEConfig configures the ACME issuer.
type ACMEConfig struct {
	// Email is the ACME account contact.
	Email string

	// CacheDir is the directory for the certificate cache.
	CacheDir string

	// DirectoryURL overrides the ACME directory endpoint. Empty means the
	// production Let's Encrypt directory.
	DirectoryURL string
}

// NewACMEIssuer creates an issuer backed by autocert.
func NewACMEIssuer(cfg ACMEConfig) (*ACMEIssuer, error) {
	if cfg.Email == "" {
		return nil, fmt.Errorf("certs.NewACMEIssuer: email is required")
	}
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("certs.NewACMEIssuer: cache directory is required")
	}

	m := &autocert.Manager{
		Cache:  autocert.DirCache(cfg.CacheDir),
		Prompt: autocert.AcceptTOS,
		Email:  cfg.Email,
		// Host policy is open: eligibility is decided by the claim
		// coordinator before a job ever reaches the issuer.
		HostPolicy: func(_ context.Context, _ string) error { return nil },
	}
	if cfg.DirectoryURL != "" {
		m.Client = &acme.Client{DirectoryURL: cfg.DirectoryURL}
	}

	return &ACMEIssuer{manager: m}, nil
}

// Issue requests a certificate for domainName and returns it with its
// validity window. Errors are classified as retryable or permanent for the
// provisioning engine.
func (i *ACMEIssuer) Issue(ctx context.Context, domainName string) (*Certificate, error) {
	hello := &tls.ClientHelloInfo{ServerName: domainName}

	type result struct {
		cert *tls.Certificate
		err  error
	}
	ch := make(chan result, 1)

	// autocert.GetCertificate has no context parameter; run it in a
	// goroutine so the caller's deadline still bounds the wait.
	go func() {
		cert, err := i.manager.GetCertificate(hello)
		ch <- result{cert: cert, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, Transient("issuance timed out", ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, classify(domainName, res.err)
		}
		return fromTLSCertificate(domainName, res.cert)
	}
}

// HTTPHandler returns the handler that answers ACME HTTP-01 challenges.
// Mount it on port 80 in front of the fallback handler.
func (i *ACMEIssuer) HTTPHandler(fallback http.Handler) http.Handler {
	return i.manager.HTTPHandler(fallback)
}

func fromTLSCertificate(domainName string, cert *tls.Certificate) (*Certificate, error) {
	if cert == nil || len(cert.Certificate) == 0 {
		return nil, Permanent("CA returned empty certificate", nil)
	}

	leaf := cert.Leaf
	if leaf == nil {
		parsed, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, Permanent("malformed leaf certificate", err)
		}
		leaf = parsed
	}

	return &Certificate{
		Domain:    domainName,
		IssuedAt:  leaf.NotBefore,
		ExpiresAt: leaf.NotAfter,
	}, nil
}

// classify maps ACME errors onto the retryable/permanent split. Order
// matters: an explicit ACME problem type beats string matching.
func classify(domainName string, err error) *IssuanceError {
	var acmeErr *acme.Error
	if errors.As(err, &acmeErr) {
		switch {
		case acmeErr.StatusCode == http.StatusTooManyRequests:
			return Transient("CA rate limit", err)
		case acmeErr.StatusCode >= 500:
			return Transient("CA server error", err)
		default:
			// 4xx problems (unauthorized, rejectedIdentifier, CAA) mean the
			// CA refused this domain; retrying the same request cannot help.
			return Permanent("CA rejected request for "+domainName, err)
		}
	}

	var authzErr *acme.AuthorizationError
	if errors.As(err, &authzErr) {
		return Permanent("domain validation failed for "+domainName, err)
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return Transient("transient CA failure", err)
		}
	}

	return Transient("unclassified CA failure", err)
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"network is unreachable",
	"no such host",
	"timeout",
	"temporary failure",
	"rate limit",
}
