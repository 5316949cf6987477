// Package memory provides mutex-guarded in-memory implementations of the
// tenant and job repositories for tests and local development. Claim
// semantics match the Postgres store: the whole conditional write happens
// under one lock, so concurrent claims observe the same atomicity.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tenantd/tenantd/internal/domain"
)

type TenantRepo struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]*domain.Tenant
}

func NewTenantRepo() *TenantRepo {
	return &TenantRepo{tenants: make(map[uuid.UUID]*domain.Tenant)}
}

func (r *TenantRepo) Create(_ context.Context, t *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[t.ID]; ok {
		return fmt.Errorf("memory.TenantRepo.Create: %w", domain.ErrConflict)
	}
	for _, other := range r.tenants {
		if other.Slug == t.Slug {
			return fmt.Errorf("memory.TenantRepo.Create: slug %q: %w", t.Slug, domain.ErrConflict)
		}
	}

	if t.CertStatus == "" {
		t.CertStatus = domain.CertStatusUnbound
	}
	r.tenants[t.ID] = clone(t)

	return nil
}

func (r *TenantRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[id]
	if !ok {
		return nil, fmt.Errorf("memory.TenantRepo.GetByID: %w", domain.ErrNotFound)
	}
	return clone(t), nil
}

func (r *TenantRepo) GetBySlug(_ context.Context, slug string) (*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tenants {
		if t.Slug == slug {
			return clone(t), nil
		}
	}
	return nil, fmt.Errorf("memory.TenantRepo.GetBySlug: %w", domain.ErrNotFound)
}

func (r *TenantRepo) GetByDomain(_ context.Context, domainName string) (*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(domainName)
	for _, t := range r.tenants {
		if t.Domain == name {
			return clone(t), nil
		}
	}
	return nil, fmt.Errorf("memory.TenantRepo.GetByDomain: %w", domain.ErrNotFound)
}

func (r *TenantRepo) Update(_ context.Context, t *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tenants[t.ID]
	if !ok {
		return fmt.Errorf("memory.TenantRepo.Update: %w", domain.ErrNotFound)
	}

	cur.Name = t.Name
	cur.Slug = t.Slug
	cur.UpdatedAt = time.Now()

	return nil
}

func (r *TenantRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[id]; !ok {
		return fmt.Errorf("memory.TenantRepo.Delete: %w", domain.ErrNotFound)
	}
	delete(r.tenants, id)

	return nil
}

func (r *TenantRepo) List(_ context.Context, limit, offset int) ([]*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*domain.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		all = append(all, clone(t))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	return all, nil
}

// ClaimDomain performs the whole claim under one lock: eligibility check,
// uniqueness check, and the write are a single atomic step.
func (r *TenantRepo) ClaimDomain(_ context.Context, tenantID uuid.UUID, domainName string) (*domain.Tenant, domain.ClaimOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(domainName)

	t, ok := r.tenants[tenantID]
	if !ok {
		return nil, "", fmt.Errorf("memory.TenantRepo.ClaimDomain: %w", domain.ErrNotFound)
	}

	for _, other := range r.tenants {
		if other.ID != tenantID && other.Domain == name {
			return nil, "", fmt.Errorf("memory.TenantRepo.ClaimDomain: %q: %w", name, domain.ErrDomainTaken)
		}
	}

	if t.Domain == name && (t.CertStatus == domain.CertStatusPending || t.CertStatus == domain.CertStatusIssued) {
		return clone(t), domain.ClaimOutcomeAlreadyBound, nil
	}

	if t.CertStatus != domain.CertStatusUnbound && t.CertStatus != domain.CertStatusFailed {
		// Bound or mid-claim on a different domain; release first.
		return nil, "", fmt.Errorf("memory.TenantRepo.ClaimDomain: tenant holds %q: %w", t.Domain, domain.ErrConflict)
	}

	t.Domain = name
	t.CertStatus = domain.CertStatusPending
	t.CertError = ""
	t.CertAttempts = 0
	t.CertIssuedAt = nil
	t.CertExpiresAt = nil
	t.UpdatedAt = time.Now()

	return clone(t), domain.ClaimOutcomeClaimed, nil
}

func (r *TenantRepo) ReleaseDomain(_ context.Context, tenantID uuid.UUID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[tenantID]
	if !ok {
		return "", fmt.Errorf("memory.TenantRepo.ReleaseDomain: %w", domain.ErrNotFound)
	}

	released := t.Domain
	t.Domain = ""
	t.CertStatus = domain.CertStatusUnbound
	t.CertError = ""
	t.CertAttempts = 0
	t.CertIssuedAt = nil
	t.CertExpiresAt = nil
	t.UpdatedAt = time.Now()

	return released, nil
}

func (r *TenantRepo) SetCertIssued(_ context.Context, tenantID uuid.UUID, domainName string, issuedAt, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[tenantID]
	if !ok || t.Domain != strings.ToLower(domainName) {
		return false, nil
	}
	if t.CertStatus != domain.CertStatusPending && t.CertStatus != domain.CertStatusIssued {
		return false, nil
	}

	t.CertStatus = domain.CertStatusIssued
	t.CertError = ""
	t.CertIssuedAt = &issuedAt
	t.CertExpiresAt = &expiresAt
	t.UpdatedAt = time.Now()

	return true, nil
}

func (r *TenantRepo) SetCertFailed(_ context.Context, tenantID uuid.UUID, domainName, reason string, attempts int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[tenantID]
	if !ok || t.Domain != strings.ToLower(domainName) {
		return false, nil
	}
	if t.CertStatus != domain.CertStatusPending && t.CertStatus != domain.CertStatusIssued {
		return false, nil
	}

	t.CertStatus = domain.CertStatusFailed
	t.CertError = reason
	t.CertAttempts = attempts
	t.UpdatedAt = time.Now()

	return true, nil
}

func (r *TenantRepo) ListBound(_ context.Context) ([]*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var bound []*domain.Tenant
	for _, t := range r.tenants {
		if t.Domain != "" {
			bound = append(bound, clone(t))
		}
	}
	sort.Slice(bound, func(i, j int) bool { return bound[i].Domain < bound[j].Domain })

	return bound, nil
}

func (r *TenantRepo) ListByCertStatus(_ context.Context, status domain.CertificateStatus) ([]*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Tenant
	for _, t := range r.tenants {
		if t.CertStatus == status {
			out = append(out, clone(t))
		}
	}

	return out, nil
}

func (r *TenantRepo) ListExpiring(_ context.Context, cutoff time.Time) ([]*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Tenant
	for _, t := range r.tenants {
		if t.CertStatus == domain.CertStatusIssued && t.CertExpiresAt != nil && t.CertExpiresAt.Before(cutoff) {
			out = append(out, clone(t))
		}
	}

	return out, nil
}

func clone(t *domain.Tenant) *domain.Tenant {
	c := *t
	if t.CertIssuedAt != nil {
		v := *t.CertIssuedAt
		c.CertIssuedAt = &v
	}
	if t.CertExpiresAt != nil {
		v := *t.CertExpiresAt
		c.CertExpiresAt = &v
	}
	return &c
}
