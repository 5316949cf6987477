package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/tenantd/tenantd/internal/api/v1"
	"github.com/tenantd/tenantd/internal/api/ws"
	"github.com/tenantd/tenantd/internal/registry"
	"github.com/tenantd/tenantd/internal/store/postgres"
)

func registerAPIRoutes(api huma.API, store *postgres.Store, reg *registry.Service) {
	v1.RegisterTenantRoutes(api, store, reg)
	v1.RegisterDomainRoutes(api, reg)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/domains", hub.ServeDomains)
	r.Get("/tenants/{tenantID}", hub.ServeTenant)
}
