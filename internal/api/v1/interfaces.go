package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/tenantd/tenantd/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Tenants() domain.TenantRepository
	Jobs() domain.JobRepository
}

// Registry abstracts domain binding operations for handler testing.
// *registry.Service satisfies this interface.
type Registry interface {
	BindDomain(ctx context.Context, tenantID uuid.UUID, domainName string) (*domain.Tenant, domain.ClaimOutcome, error)
	ReleaseDomain(ctx context.Context, tenantID uuid.UUID) (string, error)
	DomainStatus(ctx context.Context, tenantID uuid.UUID) (*domain.Tenant, error)
	ListBound(ctx context.Context) ([]*domain.Tenant, error)
}
