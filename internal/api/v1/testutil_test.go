package v1_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tenantd/tenantd/internal/domain"
	"github.com/tenantd/tenantd/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers — inject role into context for DoCtx
// ---------------------------------------------------------------------------

func adminCtx() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeySubject, "ops@example.com")
	ctx = context.WithValue(ctx, middleware.ContextKeyRole, "admin")
	return ctx
}

func memberCtx() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeySubject, "user@example.com")
	ctx = context.WithValue(ctx, middleware.ContextKeyRole, "member")
	return ctx
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	tenants domain.TenantRepository
	jobs    domain.JobRepository
}

func (m *mockDataStore) Tenants() domain.TenantRepository { return m.tenants }
func (m *mockDataStore) Jobs() domain.JobRepository       { return m.jobs }

// ---------------------------------------------------------------------------
// Mock TenantRepository
// ---------------------------------------------------------------------------

type mockTenantRepo struct {
	createFunc           func(ctx context.Context, t *domain.Tenant) error
	getByIDFunc          func(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	getBySlugFunc        func(ctx context.Context, slug string) (*domain.Tenant, error)
	getByDomainFunc      func(ctx context.Context, domainName string) (*domain.Tenant, error)
	updateFunc           func(ctx context.Context, t *domain.Tenant) error
	deleteFunc           func(ctx context.Context, id uuid.UUID) error
	listFunc             func(ctx context.Context, limit, offset int) ([]*domain.Tenant, error)
	claimDomainFunc      func(ctx context.Context, tenantID uuid.UUID, domainName string) (*domain.Tenant, domain.ClaimOutcome, error)
	releaseDomainFunc    func(ctx context.Context, tenantID uuid.UUID) (string, error)
	setCertIssuedFunc    func(ctx context.Context, tenantID uuid.UUID, domainName string, issuedAt, expiresAt time.Time) (bool, error)
	setCertFailedFunc    func(ctx context.Context, tenantID uuid.UUID, domainName, reason string, attempts int) (bool, error)
	listBoundFunc        func(ctx context.Context) ([]*domain.Tenant, error)
	listByCertStatusFunc func(ctx context.Context, status domain.CertificateStatus) ([]*domain.Tenant, error)
	listExpiringFunc     func(ctx context.Context, cutoff time.Time) ([]*domain.Tenant, error)
}

func (m *mockTenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	return m.createFunc(ctx, t)
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return m.getBySlugFunc(ctx, slug)
}

func (m *mockTenantRepo) GetByDomain(ctx context.Context, domainName string) (*domain.Tenant, error) {
	return m.getByDomainFunc(ctx, domainName)
}

func (m *mockTenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	return m.updateFunc(ctx, t)
}

func (m *mockTenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockTenantRepo) List(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	return m.listFunc(ctx, limit, offset)
}

func (m *mockTenantRepo) ClaimDomain(ctx context.Context, tenantID uuid.UUID, domainName string) (*domain.Tenant, domain.ClaimOutcome, error) {
	return m.claimDomainFunc(ctx, tenantID, domainName)
}

func (m *mockTenantRepo) ReleaseDomain(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return m.releaseDomainFunc(ctx, tenantID)
}

func (m *mockTenantRepo) SetCertIssued(ctx context.Context, tenantID uuid.UUID, domainName string, issuedAt, expiresAt time.Time) (bool, error) {
	return m.setCertIssuedFunc(ctx, tenantID, domainName, issuedAt, expiresAt)
}

func (m *mockTenantRepo) SetCertFailed(ctx context.Context, tenantID uuid.UUID, domainName, reason string, attempts int) (bool, error) {
	return m.setCertFailedFunc(ctx, tenantID, domainName, reason, attempts)
}

func (m *mockTenantRepo) ListBound(ctx context.Context) ([]*domain.Tenant, error) {
	return m.listBoundFunc(ctx)
}

func (m *mockTenantRepo) ListByCertStatus(ctx context.Context, status domain.CertificateStatus) ([]*domain.Tenant, error) {
	return m.listByCertStatusFunc(ctx, status)
}

func (m *mockTenantRepo) ListExpiring(ctx context.Context, cutoff time.Time) ([]*domain.Tenant, error) {
	return m.listExpiringFunc(ctx, cutoff)
}

// ---------------------------------------------------------------------------
// Mock Registry
// ---------------------------------------------------------------------------

type mockRegistry struct {
	bindDomainFunc    func(ctx context.Context, tenantID uuid.UUID, domainName string) (*domain.Tenant, domain.ClaimOutcome, error)
	releaseDomainFunc func(ctx context.Context, tenantID uuid.UUID) (string, error)
	domainStatusFunc  func(ctx context.Context, tenantID uuid.UUID) (*domain.Tenant, error)
	listBoundFunc     func(ctx context.Context) ([]*domain.Tenant, error)
}

func (m *mockRegistry) BindDomain(ctx context.Context, tenantID uuid.UUID, domainName string) (*domain.Tenant, domain.ClaimOutcome, error) {
	return m.bindDomainFunc(ctx, tenantID, domainName)
}

func (m *mockRegistry) ReleaseDomain(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return m.releaseDomainFunc(ctx, tenantID)
}

func (m *mockRegistry) DomainStatus(ctx context.Context, tenantID uuid.UUID) (*domain.Tenant, error) {
	return m.domainStatusFunc(ctx, tenantID)
}

func (m *mockRegistry) ListBound(ctx context.Context) ([]*domain.Tenant, error) {
	return m.listBoundFunc(ctx)
}

// ---------------------------------------------------------------------------
// Deterministic UUIDs for stable tests
// ---------------------------------------------------------------------------

func fixedTenantID() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-000000000001")
}

func fixedTenantID2() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-000000000002")
}
