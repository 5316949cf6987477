package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CertificateStatus tracks the TLS certificate lifecycle of a tenant's
// custom domain binding.
type CertificateStatus string

const (
	CertStatusUnbound CertificateStatus = "unbound"
	CertStatusPending CertificateStatus = "pending"
	CertStatusIssued  CertificateStatus = "issued"
	CertStatusFailed  CertificateStatus = "failed"
)

// ValidTransition reports whether moving from s to target is a legal
// certificate status edge. Renewal re-issuance keeps the status at issued,
// so issued -> issued is allowed.
func (s CertificateStatus) ValidTransition(target CertificateStatus) bool {
	switch s {
	case CertStatusUnbound:
		return target == CertStatusPending
	case CertStatusPending:
		return target == CertStatusIssued || target == CertStatusFailed || target == CertStatusUnbound
	case CertStatusIssued:
		return target == CertStatusUnbound || target == CertStatusIssued
	case CertStatusFailed:
		return target == CertStatusUnbound || target == CertStatusPending
	default:
		return false
	}
}

// Terminal reports whether the status requires external action to change.
func (s CertificateStatus) Terminal() bool {
	return s == CertStatusIssued || s == CertStatusFailed
}

// ClaimOutcome is the result of a successful domain claim.
type ClaimOutcome string

const (
	// ClaimOutcomeClaimed means the domain was newly bound and a
	// provisioning job should run.
	ClaimOutcomeClaimed ClaimOutcome = "claimed"

	// ClaimOutcomeAlreadyBound means the same tenant already holds the
	// domain with issuance pending or complete; no new job is needed.
	ClaimOutcomeAlreadyBound ClaimOutcome = "already_bound"
)

// Tenant is a registry tenant. Domain is empty when no custom domain is
// bound; when set it is globally unique across all tenants.
type Tenant struct {
	ID            uuid.UUID
	Name          string
	Slug          string
	Domain        string
	CertStatus    CertificateStatus
	CertError     string
	CertAttempts  int
	CertIssuedAt  *time.Time
	CertExpiresAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TenantRepository is the persistence contract for tenants.
//
// ClaimDomain and ReleaseDomain are the only write paths for domain
// bindings, and ClaimDomain must be a single atomic conditional write: it
// succeeds only if no other tenant holds the domain and the claiming tenant
// is eligible (unbound, failed, or re-claiming the same domain). A separate
// existence check followed by a blind write is not an acceptable
// implementation.
type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	GetByDomain(ctx context.Context, domainName string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Tenant, error)

	// ClaimDomain atomically binds domainName to the tenant and moves the
	// certificate status to pending. Returns ClaimOutcomeAlreadyBound when
	// the tenant already holds domainName with status pending or issued.
	// Errors: ErrNotFound (unknown tenant), ErrDomainTaken (held by another
	// tenant), ErrConflict (tenant bound or mid-claim on a different domain).
	ClaimDomain(ctx context.Context, tenantID uuid.UUID, domainName string) (*Tenant, ClaimOutcome, error)

	// ReleaseDomain clears the binding and resets the certificate status to
	// unbound. Returns the released domain name, or "" when none was bound.
	ReleaseDomain(ctx context.Context, tenantID uuid.UUID) (string, error)

	// SetCertIssued commits a successful issuance. The write is conditional
	// on the tenant still holding domainName with status pending or issued;
	// ok is false when the binding changed underneath the caller.
	SetCertIssued(ctx context.Context, tenantID uuid.UUID, domainName string, issuedAt, expiresAt time.Time) (ok bool, err error)

	// SetCertFailed commits a permanent issuance failure under the same
	// condition as SetCertIssued.
	SetCertFailed(ctx context.Context, tenantID uuid.UUID, domainName, reason string, attempts int) (ok bool, err error)

	// ListBound returns all tenants with a non-empty domain binding.
	ListBound(ctx context.Context) ([]*Tenant, error)

	// ListByCertStatus returns tenants whose certificate status matches.
	ListByCertStatus(ctx context.Context, status CertificateStatus) ([]*Tenant, error)

	// ListExpiring returns issued tenants whose certificate expires before
	// the cutoff, for renewal scheduling.
	ListExpiring(ctx context.Context, cutoff time.Time) ([]*Tenant, error)
}
