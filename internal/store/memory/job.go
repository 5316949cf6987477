package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tenantd/tenantd/internal/domain"
)

type JobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.ProvisioningJob
	now  func() time.Time
}

func NewJobRepo() *JobRepo {
	return &JobRepo{
		jobs: make(map[uuid.UUID]*domain.ProvisioningJob),
		now:  time.Now,
	}
}

// SetClock overrides the repo clock. Test hook only.
func (r *JobRepo) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *JobRepo) Enqueue(_ context.Context, job *domain.ProvisioningJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A newer job supersedes any earlier job for the same tenant.
	for id, existing := range r.jobs {
		if existing.TenantID == job.TenantID {
			delete(r.jobs, id)
		}
	}

	stored := *job
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.State == "" {
		stored.State = domain.JobStateQueued
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}
	if stored.NextAttemptAt.IsZero() {
		stored.NextAttemptAt = stored.CreatedAt
	}
	r.jobs[stored.ID] = &stored
	*job = stored

	return nil
}

func (r *JobRepo) Claim(_ context.Context, lease time.Duration) (*domain.ProvisioningJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	var best *domain.ProvisioningJob
	for _, job := range r.jobs {
		if !claimable(job, now) {
			continue
		}
		if best == nil || job.NextAttemptAt.Before(best.NextAttemptAt) {
			best = job
		}
	}
	if best == nil {
		return nil, fmt.Errorf("memory.JobRepo.Claim: %w", domain.ErrNoJob)
	}

	best.State = domain.JobStateIssuing
	expiry := now.Add(lease)
	best.LeaseExpiresAt = &expiry

	c := *best
	return &c, nil
}

func claimable(job *domain.ProvisioningJob, now time.Time) bool {
	switch job.State {
	case domain.JobStateQueued:
		return !job.NextAttemptAt.After(now)
	case domain.JobStateRetryScheduled:
		return !job.NextAttemptAt.After(now)
	case domain.JobStateIssuing:
		// Lease expired: the worker died, hand the job out again.
		return job.LeaseExpiresAt != nil && job.LeaseExpiresAt.Before(now)
	default:
		return false
	}
}

func (r *JobRepo) ScheduleRetry(_ context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return false, nil
	}

	job.State = domain.JobStateRetryScheduled
	job.Attempts = attempts
	job.NextAttemptAt = nextAttempt
	job.LastError = reason
	job.LeaseExpiresAt = nil

	return true, nil
}

func (r *JobRepo) Complete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.jobs, id)
	return nil
}

func (r *JobRepo) Supersede(_ context.Context, tenantID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, job := range r.jobs {
		if job.TenantID == tenantID {
			delete(r.jobs, id)
			removed++
		}
	}

	return removed, nil
}

func (r *JobRepo) HasLive(_ context.Context, tenantID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.TenantID == tenantID {
			return true, nil
		}
	}
	return false, nil
}

func (r *JobRepo) Depth(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.jobs), nil
}
