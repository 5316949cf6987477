package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/tenantd/tenantd/internal/domain"
)

type BindDomainInput struct {
	TenantID uuid.UUID `path:"tenantID" doc:"Tenant ID"`
	Body     struct {
		Domain string `json:"domain" minLength:"1" maxLength:"253" doc:"Fully qualified domain name to bind"`
	}
}

type BindDomainOutput struct {
	Body struct {
		Tenant  *domain.Tenant      `json:"tenant"`
		Outcome domain.ClaimOutcome `json:"outcome" doc:"claimed or already_bound"`
	}
}

type ReleaseDomainInput struct {
	TenantID uuid.UUID `path:"tenantID" doc:"Tenant ID"`
}

type ReleaseDomainOutput struct {
	Body struct {
		Released string `json:"released" doc:"The domain that was released; empty if none was bound"`
	}
}

type DomainStatusInput struct {
	TenantID uuid.UUID `path:"tenantID" doc:"Tenant ID"`
}

type DomainStatusOutput struct {
	Body struct {
		Domain       string                   `json:"domain"`
		CertStatus   domain.CertificateStatus `json:"cert_status"`
		CertError    string                   `json:"cert_error,omitempty"`
		CertAttempts int                      `json:"cert_attempts,omitempty"`
	}
}

type ListDomainsOutput struct {
	Body []*domain.Tenant
}

func RegisterDomainRoutes(api huma.API, reg Registry) {
	huma.Register(api, huma.Operation{
		OperationID: "bind-domain",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenantID}/domain",
		Summary:     "Bind a custom domain to a tenant",
		Description: "Atomically claims the domain and queues TLS certificate issuance. Re-binding the currently held domain is a no-op.",
		Tags:        []string{"Domains"},
	}, func(ctx context.Context, input *BindDomainInput) (*BindDomainOutput, error) {
		tenant, outcome, err := reg.BindDomain(ctx, input.TenantID, input.Body.Domain)
		if err != nil {
			return nil, mapError(err, "bind domain")
		}

		out := &BindDomainOutput{}
		out.Body.Tenant = tenant
		out.Body.Outcome = outcome
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "release-domain",
		Method:      http.MethodDelete,
		Path:        "/tenants/{tenantID}/domain",
		Summary:     "Release a tenant's custom domain",
		Description: "Unbinds the domain, discards in-flight provisioning work, and frees the name for other tenants.",
		Tags:        []string{"Domains"},
	}, func(ctx context.Context, input *ReleaseDomainInput) (*ReleaseDomainOutput, error) {
		released, err := reg.ReleaseDomain(ctx, input.TenantID)
		if err != nil {
			return nil, mapError(err, "release domain")
		}

		out := &ReleaseDomainOutput{}
		out.Body.Released = released
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-domain-status",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenantID}/domain",
		Summary:     "Get a tenant's domain binding and certificate status",
		Tags:        []string{"Domains"},
	}, func(ctx context.Context, input *DomainStatusInput) (*DomainStatusOutput, error) {
		tenant, err := reg.DomainStatus(ctx, input.TenantID)
		if err != nil {
			return nil, mapError(err, "get domain status")
		}

		out := &DomainStatusOutput{}
		out.Body.Domain = tenant.Domain
		out.Body.CertStatus = tenant.CertStatus
		out.Body.CertError = tenant.CertError
		out.Body.CertAttempts = tenant.CertAttempts
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-domains",
		Method:      http.MethodGet,
		Path:        "/domains",
		Summary:     "List all tenants with a bound domain",
		Tags:        []string{"Domains"},
	}, func(ctx context.Context, _ *struct{}) (*ListDomainsOutput, error) {
		tenants, err := reg.ListBound(ctx)
		if err != nil {
			return nil, mapError(err, "list domains")
		}

		return &ListDomainsOutput{Body: tenants}, nil
	})
}
