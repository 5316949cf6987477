package provision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tenantd/tenantd/internal/domain"
)

// SweeperConfig tunes the background repair and renewal sweeps.
type SweeperConfig struct {
	Interval     time.Duration
	RenewBefore  time.Duration
	RenewEnabled bool
}

// Sweeper repairs queue drift and schedules certificate renewals. It closes
// two gaps the engine alone cannot: a tenant left pending with no live job
// (a crash between claim and enqueue), and issued certificates approaching
// expiry.
type Sweeper struct {
	tenants domain.TenantRepository
	jobs    domain.JobRepository
	events  EventPublisher

	cfg SweeperConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper. events may be nil.
func NewSweeper(tenants domain.TenantRepository, jobs domain.JobRepository, events EventPublisher, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.RenewBefore <= 0 {
		cfg.RenewBefore = 30 * 24 * time.Hour
	}

	return &Sweeper{
		tenants: tenants,
		jobs:    jobs,
		events:  events,
		cfg:     cfg,
	}
}

// Start launches the sweep loop. It returns immediately; call Stop to drain.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Sweep(ctx); err != nil {
					log.Error().Err(err).Msg("provisioning sweep")
				}
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	s.wg.Wait()
}

// Sweep runs one reconcile pass followed by one renewal pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if err := s.reconcile(ctx); err != nil {
		return err
	}
	if s.cfg.RenewEnabled {
		return s.renew(ctx)
	}
	return nil
}

// reconcile requeues issuance for tenants stuck pending with no live job.
func (s *Sweeper) reconcile(ctx context.Context) error {
	pending, err := s.tenants.ListByCertStatus(ctx, domain.CertStatusPending)
	if err != nil {
		return fmt.Errorf("sweeper.reconcile: list pending: %w", err)
	}

	for _, tenant := range pending {
		live, err := s.jobs.HasLive(ctx, tenant.ID)
		if err != nil {
			return fmt.Errorf("sweeper.reconcile: check live job: %w", err)
		}
		if live {
			continue
		}

		err = s.jobs.Enqueue(ctx, &domain.ProvisioningJob{
			TenantID: tenant.ID,
			Domain:   tenant.Domain,
		})
		if err != nil {
			return fmt.Errorf("sweeper.reconcile: enqueue: %w", err)
		}

		log.Warn().
			Str("tenant_id", tenant.ID.String()).
			Str("domain", tenant.Domain).
			Msg("requeued orphaned pending binding")
	}

	return nil
}

// renew enqueues re-issuance for certificates expiring inside the renewal
// window. Renewal keeps the tenant at issued; only the queue sees the work.
func (s *Sweeper) renew(ctx context.Context) error {
	cutoff := time.Now().Add(s.cfg.RenewBefore)

	expiring, err := s.tenants.ListExpiring(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweeper.renew: list expiring: %w", err)
	}

	for _, tenant := range expiring {
		live, err := s.jobs.HasLive(ctx, tenant.ID)
		if err != nil {
			return fmt.Errorf("sweeper.renew: check live job: %w", err)
		}
		if live {
			continue
		}

		err = s.jobs.Enqueue(ctx, &domain.ProvisioningJob{
			TenantID: tenant.ID,
			Domain:   tenant.Domain,
		})
		if err != nil {
			return fmt.Errorf("sweeper.renew: enqueue: %w", err)
		}

		log.Info().
			Str("tenant_id", tenant.ID.String()).
			Str("domain", tenant.Domain).
			Msg("renewal scheduled")

		if s.events != nil {
			event := &domain.DomainEvent{
				Type:     domain.EventRenewalScheduled,
				TenantID: tenant.ID,
				Domain:   tenant.Domain,
				Status:   domain.CertStatusIssued,
				At:       time.Now(),
			}
			if err := s.events.PublishEvent(ctx, event); err != nil {
				log.Warn().Err(err).Str("domain", tenant.Domain).Msg("publish renewal event failed")
			}
		}
	}

	return nil
}
