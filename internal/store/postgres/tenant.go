package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenantd/tenantd/internal/domain"
)

const uniqueViolation = "23505"

const tenantColumns = `id, name, slug, domain, cert_status, cert_error, cert_attempts,
	cert_issued_at, cert_expires_at, created_at, updated_at`

type TenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Domain, &t.CertStatus, &t.CertError, &t.CertAttempts,
		&t.CertIssuedAt, &t.CertExpiresAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	if t.CertStatus == "" {
		t.CertStatus = domain.CertStatusUnbound
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, slug, domain, cert_status, created_at, updated_at)
		 VALUES ($1, $2, $3, '', $4, $5, $6)`,
		t.ID, t.Name, t.Slug, t.CertStatus, t.CreatedAt, t.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("tenantRepo.Create: slug %q: %w", t.Slug, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("tenantRepo.Create: %w", err)
	}

	return nil
}

func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	t, err := scanTenant(r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenantRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.GetByID: %w", err)
	}

	return t, nil
}

func (r *TenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	t, err := scanTenant(r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenantRepo.GetBySlug: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.GetBySlug: %w", err)
	}

	return t, nil
}

func (r *TenantRepo) GetByDomain(ctx context.Context, domainName string) (*domain.Tenant, error) {
	t, err := scanTenant(r.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE domain = $1`,
		strings.ToLower(domainName)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenantRepo.GetByDomain: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.GetByDomain: %w", err)
	}

	return t, nil
}

func (r *TenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET name = $1, slug = $2, updated_at = now() WHERE id = $3`,
		t.Name, t.Slug, t.ID,
	)
	if err != nil {
		return fmt.Errorf("tenantRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("tenantRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TenantRepo) List(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.List: %w", err)
	}
	defer rows.Close()

	return collectTenants(rows, "tenantRepo.List")
}

// ClaimDomain binds domainName to the tenant with one conditional UPDATE.
// The anti-join refuses the write when any other tenant holds the domain,
// and the eligibility predicate refuses it when this tenant is mid-claim or
// bound elsewhere. The partial unique index on tenants.domain backs the
// same invariant at the storage level, so two racing claims can never both
// commit.
func (r *TenantRepo) ClaimDomain(ctx context.Context, tenantID uuid.UUID, domainName string) (*domain.Tenant, domain.ClaimOutcome, error) {
	name := strings.ToLower(domainName)

	t, err := scanTenant(r.pool.QueryRow(ctx,
		`UPDATE tenants SET
			domain = $2,
			cert_status = $3,
			cert_error = '',
			cert_attempts = 0,
			cert_issued_at = NULL,
			cert_expires_at = NULL,
			updated_at = now()
		 WHERE id = $1
		   AND cert_status IN ($4, $5)
		   AND NOT EXISTS (SELECT 1 FROM tenants o WHERE o.domain = $2 AND o.id <> $1)
		 RETURNING `+tenantColumns,
		tenantID, name, domain.CertStatusPending, domain.CertStatusUnbound, domain.CertStatusFailed,
	))
	if err == nil {
		return t, domain.ClaimOutcomeClaimed, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, "", fmt.Errorf("tenantRepo.ClaimDomain: %q: %w", name, domain.ErrDomainTaken)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("tenantRepo.ClaimDomain: %w", err)
	}

	// The conditional write refused; read once to name the reason.
	cur, err := r.GetByID(ctx, tenantID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("tenantRepo.ClaimDomain: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("tenantRepo.ClaimDomain: %w", err)
	}

	if cur.Domain == name && (cur.CertStatus == domain.CertStatusPending || cur.CertStatus == domain.CertStatusIssued) {
		return cur, domain.ClaimOutcomeAlreadyBound, nil
	}

	if cur.CertStatus == domain.CertStatusUnbound || cur.CertStatus == domain.CertStatusFailed {
		return nil, "", fmt.Errorf("tenantRepo.ClaimDomain: %q: %w", name, domain.ErrDomainTaken)
	}

	return nil, "", fmt.Errorf("tenantRepo.ClaimDomain: tenant holds %q: %w", cur.Domain, domain.ErrConflict)
}

func (r *TenantRepo) ReleaseDomain(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var released string
	err := r.pool.QueryRow(ctx,
		`WITH old AS (
			SELECT id, domain FROM tenants WHERE id = $1 FOR UPDATE
		 )
		 UPDATE tenants SET
			domain = '',
			cert_status = $2,
			cert_error = '',
			cert_attempts = 0,
			cert_issued_at = NULL,
			cert_expires_at = NULL,
			updated_at = now()
		 FROM old
		 WHERE tenants.id = old.id
		 RETURNING old.domain`,
		tenantID, domain.CertStatusUnbound,
	).Scan(&released)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("tenantRepo.ReleaseDomain: %w", domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("tenantRepo.ReleaseDomain: %w", err)
	}

	return released, nil
}

func (r *TenantRepo) SetCertIssued(ctx context.Context, tenantID uuid.UUID, domainName string, issuedAt, expiresAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET
			cert_status = $3,
			cert_error = '',
			cert_issued_at = $4,
			cert_expires_at = $5,
			updated_at = now()
		 WHERE id = $1 AND domain = $2 AND cert_status IN ($3, $6)`,
		tenantID, strings.ToLower(domainName), domain.CertStatusIssued, issuedAt, expiresAt, domain.CertStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("tenantRepo.SetCertIssued: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *TenantRepo) SetCertFailed(ctx context.Context, tenantID uuid.UUID, domainName, reason string, attempts int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET
			cert_status = $3,
			cert_error = $4,
			cert_attempts = $5,
			updated_at = now()
		 WHERE id = $1 AND domain = $2 AND cert_status IN ($6, $7)`,
		tenantID, strings.ToLower(domainName), domain.CertStatusFailed, reason, attempts,
		domain.CertStatusPending, domain.CertStatusIssued,
	)
	if err != nil {
		return false, fmt.Errorf("tenantRepo.SetCertFailed: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *TenantRepo) ListBound(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE domain <> '' ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.ListBound: %w", err)
	}
	defer rows.Close()

	return collectTenants(rows, "tenantRepo.ListBound")
}

func (r *TenantRepo) ListByCertStatus(ctx context.Context, status domain.CertificateStatus) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE cert_status = $1 ORDER BY updated_at`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.ListByCertStatus: %w", err)
	}
	defer rows.Close()

	return collectTenants(rows, "tenantRepo.ListByCertStatus")
}

func (r *TenantRepo) ListExpiring(ctx context.Context, cutoff time.Time) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		 WHERE cert_status = $1 AND cert_expires_at < $2
		 ORDER BY cert_expires_at`,
		domain.CertStatusIssued, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.ListExpiring: %w", err)
	}
	defer rows.Close()

	return collectTenants(rows, "tenantRepo.ListExpiring")
}

func collectTenants(rows pgx.Rows, op string) ([]*domain.Tenant, error) {
	var tenants []*domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return tenants, nil
}
