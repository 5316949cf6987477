package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenantd/tenantd/internal/domain"
)

const jobColumns = `id, tenant_id, domain, state, attempts, last_error,
	next_attempt_at, lease_expires_at, created_at`

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func scanJob(row pgx.Row) (*domain.ProvisioningJob, error) {
	var j domain.ProvisioningJob
	err := row.Scan(
		&j.ID, &j.TenantID, &j.Domain, &j.State, &j.Attempts, &j.LastError,
		&j.NextAttemptAt, &j.LeaseExpiresAt, &j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Enqueue inserts the job, replacing any live job for the same tenant in
// the same transaction so a newer binding always supersedes the older one.
func (r *JobRepo) Enqueue(ctx context.Context, job *domain.ProvisioningJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.State == "" {
		job.State = domain.JobStateQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = job.CreatedAt
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("jobRepo.Enqueue: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `DELETE FROM provisioning_jobs WHERE tenant_id = $1`, job.TenantID)
	if err != nil {
		return fmt.Errorf("jobRepo.Enqueue: supersede: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO provisioning_jobs
			(id, tenant_id, domain, state, attempts, last_error, next_attempt_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.TenantID, job.Domain, job.State, job.Attempts, job.LastError,
		job.NextAttemptAt, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("jobRepo.Enqueue: insert: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("jobRepo.Enqueue: commit: %w", err)
	}

	return nil
}

// Claim takes the next eligible job under FOR UPDATE SKIP LOCKED so
// concurrent workers never double-claim. A tenant has at most one job row
// (enforced by the unique index), and an issuing row with a live lease is
// not eligible, which yields per-tenant single-flight.
func (r *JobRepo) Claim(ctx context.Context, lease time.Duration) (*domain.ProvisioningJob, error) {
	j, err := scanJob(r.pool.QueryRow(ctx,
		`WITH next AS (
			SELECT id FROM provisioning_jobs
			WHERE (state = $1 AND next_attempt_at <= now())
			   OR (state = $2 AND next_attempt_at <= now())
			   OR (state = $3 AND lease_expires_at <= now())
			ORDER BY next_attempt_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		 )
		 UPDATE provisioning_jobs SET
			state = $3,
			lease_expires_at = now() + $4
		 FROM next
		 WHERE provisioning_jobs.id = next.id
		 RETURNING `+jobColumns,
		domain.JobStateQueued, domain.JobStateRetryScheduled, domain.JobStateIssuing, lease,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("jobRepo.Claim: %w", domain.ErrNoJob)
	}
	if err != nil {
		return nil, fmt.Errorf("jobRepo.Claim: %w", err)
	}

	return j, nil
}

func (r *JobRepo) ScheduleRetry(ctx context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE provisioning_jobs SET
			state = $2,
			attempts = $3,
			next_attempt_at = $4,
			last_error = $5,
			lease_expires_at = NULL
		 WHERE id = $1`,
		id, domain.JobStateRetryScheduled, attempts, nextAttempt, reason,
	)
	if err != nil {
		return false, fmt.Errorf("jobRepo.ScheduleRetry: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *JobRepo) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM provisioning_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("jobRepo.Complete: %w", err)
	}

	return nil
}

func (r *JobRepo) Supersede(ctx context.Context, tenantID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM provisioning_jobs WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("jobRepo.Supersede: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *JobRepo) HasLive(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	var live bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM provisioning_jobs WHERE tenant_id = $1)`,
		tenantID,
	).Scan(&live)
	if err != nil {
		return false, fmt.Errorf("jobRepo.HasLive: %w", err)
	}

	return live, nil
}

func (r *JobRepo) Depth(ctx context.Context) (int, error) {
	var depth int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM provisioning_jobs`).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("jobRepo.Depth: %w", err)
	}

	return depth, nil
}
