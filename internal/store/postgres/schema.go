package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrate bootstraps the schema. The partial unique index on tenants.domain
// is the durable uniqueness constraint behind the claim coordinator: even a
// serialization anomaly cannot bind one domain to two tenants.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			domain TEXT NOT NULL DEFAULT '',
			cert_status TEXT NOT NULL DEFAULT 'unbound',
			cert_error TEXT NOT NULL DEFAULT '',
			cert_attempts INT NOT NULL DEFAULT 0,
			cert_issued_at TIMESTAMPTZ,
			cert_expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS tenants_domain_key
			ON tenants (domain) WHERE domain <> ''`,
		`CREATE TABLE IF NOT EXISTS provisioning_jobs (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants (id) ON DELETE CASCADE,
			domain TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'queued',
			attempts INT NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			next_attempt_at TIMESTAMPTZ NOT NULL,
			lease_expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS provisioning_jobs_tenant_key
			ON provisioning_jobs (tenant_id)`,
		`CREATE INDEX IF NOT EXISTS provisioning_jobs_next_attempt_idx
			ON provisioning_jobs (next_attempt_at)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %.40q: %w", stmt, err)
		}
	}

	return nil
}
