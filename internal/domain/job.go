package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobState tracks a provisioning job through the issuance state machine.
type JobState string

const (
	JobStateQueued         JobState = "queued"
	JobStateIssuing        JobState = "issuing"
	JobStateRetryScheduled JobState = "retry_scheduled"
)

// ProvisioningJob is one certificate issuance work item. A tenant has at
// most one live job at a time; enqueueing replaces (supersedes) any earlier
// job for the same tenant. Terminal jobs are deleted, not archived: the
// durable outcome lives on the tenant record.
type ProvisioningJob struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Domain         string
	State          JobState
	Attempts       int
	LastError      string
	NextAttemptAt  time.Time
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time
}

// JobRepository is the persistence contract for the provisioning queue.
// Delivery is at-least-once: a claim takes a bounded lease, and jobs whose
// lease lapsed become claimable again.
type JobRepository interface {
	// Enqueue inserts the job, replacing any live job for the same tenant.
	Enqueue(ctx context.Context, job *ProvisioningJob) error

	// Claim atomically takes the next eligible job and moves it to issuing
	// with the given lease. Eligible means queued, retry-scheduled with a due
	// next attempt, or issuing with an expired lease; a tenant with a validly
	// leased issuing job is never handed out again (single-flight).
	// Returns ErrNoJob when nothing is claimable.
	Claim(ctx context.Context, lease time.Duration) (*ProvisioningJob, error)

	// ScheduleRetry returns a claimed job to the queue with an increased
	// attempt count and a future next-attempt time. ok is false when the job
	// no longer exists (superseded while issuing).
	ScheduleRetry(ctx context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, reason string) (ok bool, err error)

	// Complete removes a job after a terminal outcome was committed on the
	// tenant. Removing an already-superseded job is not an error.
	Complete(ctx context.Context, id uuid.UUID) error

	// Supersede removes all jobs for the tenant; returns how many were
	// removed.
	Supersede(ctx context.Context, tenantID uuid.UUID) (int, error)

	// HasLive reports whether the tenant has any job in the queue.
	HasLive(ctx context.Context, tenantID uuid.UUID) (bool, error)

	// Depth returns the number of jobs currently queued or issuing.
	Depth(ctx context.Context) (int, error)
}
