package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainEventType identifies a domain binding lifecycle event.
type DomainEventType string

const (
	EventDomainClaimed    DomainEventType = "domain_claimed"
	EventDomainReleased   DomainEventType = "domain_released"
	EventCertIssued       DomainEventType = "cert_issued"
	EventCertFailed       DomainEventType = "cert_failed"
	EventCertRetryQueued  DomainEventType = "cert_retry_queued"
	EventRenewalScheduled DomainEventType = "renewal_scheduled"
)

// DomainEvent is published on every observable domain/certificate state
// change. Consumed by the WebSocket hub and the notifier.
type DomainEvent struct {
	Type     DomainEventType   `json:"type"`
	TenantID uuid.UUID         `json:"tenant_id"`
	Domain   string            `json:"domain"`
	Status   CertificateStatus `json:"status"`
	Reason   string            `json:"reason,omitempty"`
	Attempts int               `json:"attempts,omitempty"`
	At       time.Time         `json:"at"`
}
