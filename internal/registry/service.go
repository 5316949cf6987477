package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tenantd/tenantd/internal/domain"
)

// EventPublisher fans domain lifecycle events out to subscribers.
// *redis.PubSub satisfies this interface.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *domain.DomainEvent) error
}

// Service coordinates domain claims: it validates the requested name,
// performs the atomic claim against the tenant store, and enqueues
// certificate provisioning work. It owns no state of its own; every
// uniqueness and ordering guarantee is delegated to the repositories.
type Service struct {
	tenants domain.TenantRepository
	jobs    domain.JobRepository
	events  EventPublisher
}

// New creates a claim coordinator. events may be nil, in which case
// lifecycle events are not published.
func New(tenants domain.TenantRepository, jobs domain.JobRepository, events EventPublisher) *Service {
	return &Service{tenants: tenants, jobs: jobs, events: events}
}

// BindDomain claims domainName for the tenant and queues certificate
// issuance. Claims are idempotent: re-binding the domain the tenant already
// holds succeeds without queueing new work. Binding a new domain while a
// previous binding is live requires an explicit release first and fails
// with ErrConflict.
func (s *Service) BindDomain(ctx context.Context, tenantID uuid.UUID, domainName string) (*domain.Tenant, domain.ClaimOutcome, error) {
	name := strings.ToLower(strings.TrimSpace(domainName))
	if err := domain.ValidateDomainName(name); err != nil {
		return nil, "", fmt.Errorf("registry.BindDomain: %w", err)
	}

	tenant, outcome, err := s.tenants.ClaimDomain(ctx, tenantID, name)
	if err != nil {
		return nil, "", fmt.Errorf("registry.BindDomain: %w", err)
	}

	if outcome == domain.ClaimOutcomeAlreadyBound {
		return tenant, outcome, nil
	}

	// The claim is durable at this point. A failed enqueue leaves the
	// tenant pending with no live job, which the reconciliation sweep
	// repairs, so the bind itself still succeeds.
	err = s.jobs.Enqueue(ctx, &domain.ProvisioningJob{
		TenantID: tenant.ID,
		Domain:   name,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("tenant_id", tenant.ID.String()).
			Str("domain", name).
			Msg("enqueue after claim failed; reconciliation will requeue")
	}

	s.publish(ctx, &domain.DomainEvent{
		Type:     domain.EventDomainClaimed,
		TenantID: tenant.ID,
		Domain:   name,
		Status:   tenant.CertStatus,
		At:       time.Now(),
	})

	return tenant, outcome, nil
}

// ReleaseDomain unbinds the tenant's domain, discards any in-flight
// provisioning work, and frees the name for other tenants. Returns the
// domain that was released.
func (s *Service) ReleaseDomain(ctx context.Context, tenantID uuid.UUID) (string, error) {
	released, err := s.tenants.ReleaseDomain(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("registry.ReleaseDomain: %w", err)
	}

	removed, err := s.jobs.Supersede(ctx, tenantID)
	if err != nil {
		log.Warn().Err(err).
			Str("tenant_id", tenantID.String()).
			Msg("supersede after release failed; issuance will notice on commit")
	} else if removed > 0 {
		log.Debug().
			Str("tenant_id", tenantID.String()).
			Int("removed", removed).
			Msg("superseded in-flight provisioning jobs")
	}

	s.publish(ctx, &domain.DomainEvent{
		Type:     domain.EventDomainReleased,
		TenantID: tenantID,
		Domain:   released,
		Status:   domain.CertStatusUnbound,
		At:       time.Now(),
	})

	return released, nil
}

// DomainStatus reports the tenant's current binding and certificate state.
func (s *Service) DomainStatus(ctx context.Context, tenantID uuid.UUID) (*domain.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("registry.DomainStatus: %w", err)
	}
	return tenant, nil
}

// ListBound returns all tenants that currently hold a domain.
func (s *Service) ListBound(ctx context.Context) ([]*domain.Tenant, error) {
	tenants, err := s.tenants.ListBound(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry.ListBound: %w", err)
	}
	return tenants, nil
}

func (s *Service) publish(ctx context.Context, event *domain.DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("type", string(event.Type)).
			Str("domain", event.Domain).
			Msg("publish domain event failed")
	}
}
