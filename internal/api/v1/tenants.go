package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/tenantd/tenantd/internal/domain"
	"github.com/tenantd/tenantd/internal/server/middleware"
)

type CreateTenantInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"255" doc:"Tenant name"`
		Slug string `json:"slug" minLength:"1" maxLength:"63" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-safe slug (lowercase alphanumeric with hyphens)"`
	}
}

type CreateTenantOutput struct {
	Body *domain.Tenant
}

type GetTenantInput struct {
	TenantID uuid.UUID `path:"tenantID" doc:"Tenant ID"`
}

type GetTenantOutput struct {
	Body *domain.Tenant
}

type ListTenantsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListTenantsOutput struct {
	Body []*domain.Tenant
}

type UpdateTenantInput struct {
	TenantID uuid.UUID `path:"tenantID" doc:"Tenant ID"`
	Body     struct {
		Name string `json:"name" minLength:"1" maxLength:"255" doc:"Tenant name"`
	}
}

type UpdateTenantOutput struct {
	Body *domain.Tenant
}

type DeleteTenantInput struct {
	TenantID uuid.UUID `path:"tenantID" doc:"Tenant ID"`
}

type DeleteTenantOutput struct {
	Status int
}

func RegisterTenantRoutes(api huma.API, store DataStore, reg Registry) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/tenants",
		Summary:     "Create a new tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *CreateTenantInput) (*CreateTenantOutput, error) {
		role, ok := middleware.RoleFromContext(ctx)
		if !ok || role != "admin" {
			return nil, huma.Error403Forbidden("admin role required")
		}

		now := time.Now()
		t := &domain.Tenant{
			ID:         uuid.New(),
			Name:       input.Body.Name,
			Slug:       input.Body.Slug,
			CertStatus: domain.CertStatusUnbound,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := store.Tenants().Create(ctx, t); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("slug is already in use")
			}
			return nil, huma.Error500InternalServerError("failed to create tenant", err)
		}

		return &CreateTenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenantID}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		t, err := store.Tenants().GetByID(ctx, input.TenantID)
		if err != nil {
			return nil, mapError(err, "get tenant")
		}

		return &GetTenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenants",
		Summary:     "List all tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		role, ok := middleware.RoleFromContext(ctx)
		if !ok || role != "admin" {
			return nil, huma.Error403Forbidden("admin role required")
		}

		tenants, err := store.Tenants().List(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tenants", err)
		}

		return &ListTenantsOutput{Body: tenants}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tenant",
		Method:      http.MethodPatch,
		Path:        "/tenants/{tenantID}",
		Summary:     "Update a tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *UpdateTenantInput) (*UpdateTenantOutput, error) {
		role, ok := middleware.RoleFromContext(ctx)
		if !ok || role != "admin" {
			return nil, huma.Error403Forbidden("admin role required")
		}

		t, err := store.Tenants().GetByID(ctx, input.TenantID)
		if err != nil {
			return nil, mapError(err, "update tenant")
		}

		t.Name = input.Body.Name
		t.UpdatedAt = time.Now()

		if err := store.Tenants().Update(ctx, t); err != nil {
			return nil, mapError(err, "update tenant")
		}

		return &UpdateTenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-tenant",
		Method:        http.MethodDelete,
		Path:          "/tenants/{tenantID}",
		Summary:       "Delete a tenant",
		Description:   "Releases any bound domain, discards queued provisioning work, and removes the tenant.",
		Tags:          []string{"Tenants"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteTenantInput) (*DeleteTenantOutput, error) {
		role, ok := middleware.RoleFromContext(ctx)
		if !ok || role != "admin" {
			return nil, huma.Error403Forbidden("admin role required")
		}

		// Release first so the domain is immediately claimable by others.
		if _, err := reg.ReleaseDomain(ctx, input.TenantID); err != nil {
			return nil, mapError(err, "delete tenant")
		}

		if err := store.Tenants().Delete(ctx, input.TenantID); err != nil {
			return nil, mapError(err, "delete tenant")
		}

		return &DeleteTenantOutput{Status: http.StatusNoContent}, nil
	})
}
