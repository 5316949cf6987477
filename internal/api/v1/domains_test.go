package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/tenantd/tenantd/internal/api/v1"
	"github.com/tenantd/tenantd/internal/domain"
)

// ---------------------------------------------------------------------------
// POST /tenants/{tenantID}/domain
// ---------------------------------------------------------------------------

func TestBindDomain(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		reg := &mockRegistry{
			bindDomainFunc: func(_ context.Context, tenantID uuid.UUID, domainName string) (*domain.Tenant, domain.ClaimOutcome, error) {
				assert.Equal(t, fixedTenantID(), tenantID)
				assert.Equal(t, "app.example.com", domainName)
				return &domain.Tenant{
					ID:         tenantID,
					Slug:       "acme",
					Domain:     domainName,
					CertStatus: domain.CertStatusPending,
				}, domain.ClaimOutcomeClaimed, nil
			},
		}

		v1.RegisterDomainRoutes(api, reg)

		resp := api.PostCtx(adminCtx(), fmt.Sprintf("/tenants/%s/domain", fixedTenantID()), map[string]any{
			"domain": "app.example.com",
		})

		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Tenant  *domain.Tenant      `json:"tenant"`
			Outcome domain.ClaimOutcome `json:"outcome"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, domain.ClaimOutcomeClaimed, body.Outcome)
		assert.Equal(t, domain.CertStatusPending, body.Tenant.CertStatus)
	})

	t.Run("invalid_domain_400", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		reg := &mockRegistry{
			bindDomainFunc: func(_ context.Context, _ uuid.UUID, _ string) (*domain.Tenant, domain.ClaimOutcome, error) {
				return nil, "", domain.ErrInvalidDomain
			},
		}

		v1.RegisterDomainRoutes(api, reg)

		resp := api.PostCtx(adminCtx(), fmt.Sprintf("/tenants/%s/domain", fixedTenantID()), map[string]any{
			"domain": "a..b.com",
		})

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("taken_domain_409", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		reg := &mockRegistry{
			bindDomainFunc: func(_ context.Context, _ uuid.UUID, _ string) (*domain.Tenant, domain.ClaimOutcome, error) {
				return nil, "", domain.ErrDomainTaken
			},
		}

		v1.RegisterDomainRoutes(api, reg)

		resp := api.PostCtx(adminCtx(), fmt.Sprintf("/tenants/%s/domain", fixedTenantID()), map[string]any{
			"domain": "taken.example.com",
		})

		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("bound_elsewhere_409", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		reg := &mockRegistry{
			bindDomainFunc: func(_ context.Context, _ uuid.UUID, _ string) (*domain.Tenant, domain.ClaimOutcome, error) {
				return nil, "", domain.ErrConflict
			},
		}

		v1.RegisterDomainRoutes(api, reg)

		resp := api.PostCtx(adminCtx(), fmt.Sprintf("/tenants/%s/domain", fixedTenantID()), map[string]any{
			"domain": "new.example.com",
		})

		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("unknown_tenant_404", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		reg := &mockRegistry{
			bindDomainFunc: func(_ context.Context, _ uuid.UUID, _ string) (*domain.Tenant, domain.ClaimOutcome, error) {
				return nil, "", domain.ErrNotFound
			},
		}

		v1.RegisterDomainRoutes(api, reg)

		resp := api.PostCtx(adminCtx(), fmt.Sprintf("/tenants/%s/domain", fixedTenantID()), map[string]any{
			"domain": "app.example.com",
		})

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// DELETE /tenants/{tenantID}/domain
// ---------------------------------------------------------------------------

func TestReleaseDomain(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		reg := &mockRegistry{
			releaseDomainFunc: func(_ context.Context, tenantID uuid.UUID) (string, error) {
				assert.Equal(t, fixedTenantID(), tenantID)
				return "app.example.com", nil
			},
		}

		v1.RegisterDomainRoutes(api, reg)

		resp := api.DeleteCtx(adminCtx(), fmt.Sprintf("/tenants/%s/domain", fixedTenantID()))
		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Released string `json:"released"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "app.example.com", body.Released)
	})

	t.Run("nothing_bound", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		reg := &mockRegistry{
			releaseDomainFunc: func(_ context.Context, _ uuid.UUID) (string, error) {
				return "", nil
			},
		}

		v1.RegisterDomainRoutes(api, reg)

		resp := api.DeleteCtx(adminCtx(), fmt.Sprintf("/tenants/%s/domain", fixedTenantID()))
		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Released string `json:"released"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Empty(t, body.Released)
	})
}

// ---------------------------------------------------------------------------
// GET /tenants/{tenantID}/domain
// ---------------------------------------------------------------------------

func TestGetDomainStatus(t *testing.T) {
	t.Parallel()

	t.Run("failed_binding_reports_reason", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		reg := &mockRegistry{
			domainStatusFunc: func(_ context.Context, tenantID uuid.UUID) (*domain.Tenant, error) {
				return &domain.Tenant{
					ID:           tenantID,
					Domain:       "app.example.com",
					CertStatus:   domain.CertStatusFailed,
					CertError:    "caa forbids issuance",
					CertAttempts: 5,
				}, nil
			},
		}

		v1.RegisterDomainRoutes(api, reg)

		resp := api.GetCtx(adminCtx(), fmt.Sprintf("/tenants/%s/domain", fixedTenantID()))
		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Domain       string                   `json:"domain"`
			CertStatus   domain.CertificateStatus `json:"cert_status"`
			CertError    string                   `json:"cert_error"`
			CertAttempts int                      `json:"cert_attempts"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, domain.CertStatusFailed, body.CertStatus)
		assert.Equal(t, "caa forbids issuance", body.CertError)
		assert.Equal(t, 5, body.CertAttempts)
	})

	t.Run("unknown_tenant_404", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		reg := &mockRegistry{
			domainStatusFunc: func(_ context.Context, _ uuid.UUID) (*domain.Tenant, error) {
				return nil, domain.ErrNotFound
			},
		}

		v1.RegisterDomainRoutes(api, reg)

		resp := api.GetCtx(adminCtx(), fmt.Sprintf("/tenants/%s/domain", fixedTenantID()))
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// GET /domains
// ---------------------------------------------------------------------------

func TestListDomains(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	reg := &mockRegistry{
		listBoundFunc: func(_ context.Context) ([]*domain.Tenant, error) {
			return []*domain.Tenant{
				{ID: fixedTenantID(), Slug: "alpha", Domain: "a.example.com", CertStatus: domain.CertStatusIssued},
				{ID: fixedTenantID2(), Slug: "beta", Domain: "b.example.com", CertStatus: domain.CertStatusPending},
			}, nil
		},
	}

	v1.RegisterDomainRoutes(api, reg)

	resp := api.GetCtx(adminCtx(), "/domains")
	require.Equal(t, http.StatusOK, resp.Code)

	var body []*domain.Tenant
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 2)
	assert.Equal(t, "a.example.com", body[0].Domain)
	assert.Equal(t, "b.example.com", body[1].Domain)
}
