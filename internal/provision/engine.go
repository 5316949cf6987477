package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tenantd/tenantd/internal/certs"
	"github.com/tenantd/tenantd/internal/domain"
)

// Notifier receives terminal certificate outcomes. *notify.SlackNotifier
// satisfies this interface.
type Notifier interface {
	CertIssued(ctx context.Context, tenant *domain.Tenant) error
	CertFailed(ctx context.Context, tenant *domain.Tenant, reason string) error
}

// EventPublisher fans domain lifecycle events out to subscribers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *domain.DomainEvent) error
}

// Config tunes the provisioning engine.
type Config struct {
	Workers      int
	PollInterval time.Duration
	Lease        time.Duration
	IssueTimeout time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	DrainTimeout time.Duration
}

// Engine drains the provisioning queue: it claims jobs under a lease, runs
// issuance against the CA, and commits the outcome to the tenant record.
// Every commit is conditional on the binding being unchanged, so work for a
// released or re-bound domain is discarded without touching the tenant.
type Engine struct {
	tenants domain.TenantRepository
	jobs    domain.JobRepository
	issuer  certs.Issuer
	events  EventPublisher
	notify  Notifier

	cfg     Config
	backoff Backoff

	mu         sync.Mutex
	cancel     context.CancelFunc
	workCancel context.CancelFunc
	wg         sync.WaitGroup
	sem        chan struct{}
}

// New creates a provisioning engine. events and notify may be nil.
func New(tenants domain.TenantRepository, jobs domain.JobRepository, issuer certs.Issuer, events EventPublisher, notify Notifier, cfg Config) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if cfg.IssueTimeout <= 0 {
		cfg.IssueTimeout = 2 * time.Minute
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 15 * time.Minute
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}

	return &Engine{
		tenants: tenants,
		jobs:    jobs,
		issuer:  issuer,
		events:  events,
		notify:  notify,
		cfg:     cfg,
		backoff: Backoff{Base: cfg.BackoffBase, Cap: cfg.BackoffCap},
		sem:     make(chan struct{}, cfg.Workers),
	}
}

// Start launches the claim loop. It returns immediately; call Stop to drain.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return errors.New("provision: engine already started")
	}

	intakeCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	// Workers run detached from the intake context so a shutdown drains
	// in-flight issuance instead of aborting it. Stop bounds the drain.
	workCtx, workCancel := context.WithCancel(context.Background())
	e.workCancel = workCancel

	log.Info().
		Int("workers", e.cfg.Workers).
		Dur("poll_interval", e.cfg.PollInterval).
		Dur("lease", e.cfg.Lease).
		Int("max_attempts", e.cfg.MaxAttempts).
		Msg("provisioning engine started")

	e.wg.Add(1)
	go e.run(intakeCtx, workCtx)

	return nil
}

// Stop halts intake and waits for in-flight issuance to finish. Jobs still
// running after DrainTimeout are cancelled; their leases expire and another
// claim picks them up.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	workCancel := e.workCancel
	e.cancel = nil
	e.workCancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	timer := time.AfterFunc(e.cfg.DrainTimeout, workCancel)
	e.wg.Wait()
	timer.Stop()
	workCancel()
	log.Info().Msg("provisioning engine stopped")
}

func (e *Engine) run(intakeCtx, workCtx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-intakeCtx.Done():
			return
		case <-ticker.C:
			e.drain(intakeCtx, workCtx)
		}
	}
}

// drain claims jobs until the queue is empty or all worker slots are busy.
func (e *Engine) drain(intakeCtx, workCtx context.Context) {
	for {
		select {
		case <-intakeCtx.Done():
			return
		case e.sem <- struct{}{}:
		default:
			return
		}

		job, err := e.jobs.Claim(intakeCtx, e.cfg.Lease)
		if err != nil {
			<-e.sem
			if !errors.Is(err, domain.ErrNoJob) && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("claim provisioning job")
			}
			return
		}

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			defer func() { <-e.sem }()
			if err := e.Process(workCtx, job); err != nil {
				log.Error().Err(err).
					Str("job_id", job.ID.String()).
					Str("domain", job.Domain).
					Msg("process provisioning job")
			}
		}()
	}
}

// Process runs one claimed job to an outcome. Exported for the sweeper and
// for tests; production claims come from the engine's own loop.
func (e *Engine) Process(ctx context.Context, job *domain.ProvisioningJob) error {
	tenant, err := e.tenants.GetByID(ctx, job.TenantID)
	if errors.Is(err, domain.ErrNotFound) {
		// Tenant deleted while the job waited.
		return e.discard(ctx, job, "tenant deleted")
	}
	if err != nil {
		return fmt.Errorf("provision.Process: load tenant: %w", err)
	}

	if tenant.Domain != job.Domain || (tenant.CertStatus != domain.CertStatusPending && tenant.CertStatus != domain.CertStatusIssued) {
		return e.discard(ctx, job, "binding changed")
	}

	issueCtx, cancel := context.WithTimeout(ctx, e.cfg.IssueTimeout)
	cert, issueErr := e.issuer.Issue(issueCtx, job.Domain)
	cancel()

	if issueErr == nil {
		return e.commitIssued(ctx, job, cert)
	}

	return e.commitFailure(ctx, job, issueErr)
}

func (e *Engine) commitIssued(ctx context.Context, job *domain.ProvisioningJob, cert *certs.Certificate) error {
	ok, err := e.tenants.SetCertIssued(ctx, job.TenantID, job.Domain, cert.IssuedAt, cert.ExpiresAt)
	if err != nil {
		return fmt.Errorf("provision.Process: commit issuance: %w", err)
	}
	if !ok {
		return e.discard(ctx, job, "superseded before commit")
	}

	if err := e.jobs.Complete(ctx, job.ID); err != nil {
		return fmt.Errorf("provision.Process: complete job: %w", err)
	}

	log.Info().
		Str("tenant_id", job.TenantID.String()).
		Str("domain", job.Domain).
		Time("expires_at", cert.ExpiresAt).
		Msg("certificate issued")

	tenant, err := e.tenants.GetByID(ctx, job.TenantID)
	if err != nil {
		return fmt.Errorf("provision.Process: reload tenant: %w", err)
	}

	e.publish(ctx, &domain.DomainEvent{
		Type:     domain.EventCertIssued,
		TenantID: job.TenantID,
		Domain:   job.Domain,
		Status:   domain.CertStatusIssued,
		At:       time.Now(),
	})

	if e.notify != nil {
		if err := e.notify.CertIssued(ctx, tenant); err != nil {
			log.Warn().Err(err).Str("domain", job.Domain).Msg("issuance notification failed")
		}
	}

	return nil
}

func (e *Engine) commitFailure(ctx context.Context, job *domain.ProvisioningJob, issueErr error) error {
	attempts := job.Attempts + 1
	reason := certs.FailureReason(issueErr)

	if certs.Retryable(issueErr) && attempts < e.cfg.MaxAttempts {
		next := time.Now().Add(e.backoff.Delay(attempts))
		ok, err := e.jobs.ScheduleRetry(ctx, job.ID, attempts, next, reason)
		if err != nil {
			return fmt.Errorf("provision.Process: schedule retry: %w", err)
		}
		if !ok {
			// Job was superseded while issuing; nothing left to retry.
			return nil
		}

		log.Warn().
			Str("tenant_id", job.TenantID.String()).
			Str("domain", job.Domain).
			Int("attempts", attempts).
			Time("next_attempt", next).
			Str("reason", reason).
			Msg("issuance failed, retry scheduled")

		e.publish(ctx, &domain.DomainEvent{
			Type:     domain.EventCertRetryQueued,
			TenantID: job.TenantID,
			Domain:   job.Domain,
			Status:   domain.CertStatusPending,
			Reason:   reason,
			Attempts: attempts,
			At:       time.Now(),
		})

		return nil
	}

	ok, err := e.tenants.SetCertFailed(ctx, job.TenantID, job.Domain, reason, attempts)
	if err != nil {
		return fmt.Errorf("provision.Process: commit failure: %w", err)
	}
	if !ok {
		return e.discard(ctx, job, "superseded before commit")
	}

	if err := e.jobs.Complete(ctx, job.ID); err != nil {
		return fmt.Errorf("provision.Process: complete job: %w", err)
	}

	log.Error().
		Str("tenant_id", job.TenantID.String()).
		Str("domain", job.Domain).
		Int("attempts", attempts).
		Str("reason", reason).
		Msg("certificate issuance failed permanently")

	e.publish(ctx, &domain.DomainEvent{
		Type:     domain.EventCertFailed,
		TenantID: job.TenantID,
		Domain:   job.Domain,
		Status:   domain.CertStatusFailed,
		Reason:   reason,
		Attempts: attempts,
		At:       time.Now(),
	})

	if e.notify != nil {
		tenant, terr := e.tenants.GetByID(ctx, job.TenantID)
		if terr == nil {
			if nerr := e.notify.CertFailed(ctx, tenant, reason); nerr != nil {
				log.Warn().Err(nerr).Str("domain", job.Domain).Msg("failure notification failed")
			}
		}
	}

	return nil
}

// discard drops a job whose outcome no longer matters. The tenant record is
// left untouched.
func (e *Engine) discard(ctx context.Context, job *domain.ProvisioningJob, why string) error {
	log.Debug().
		Str("job_id", job.ID.String()).
		Str("domain", job.Domain).
		Str("why", why).
		Msg("discarding provisioning job")

	if err := e.jobs.Complete(ctx, job.ID); err != nil {
		return fmt.Errorf("provision.Process: discard job: %w", err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, event *domain.DomainEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishEvent(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("type", string(event.Type)).
			Str("domain", event.Domain).
			Msg("publish domain event failed")
	}
}
