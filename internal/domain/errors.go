package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound      = errors.New("domain: not found")
	ErrConflict      = errors.New("domain: conflict")
	ErrInvalidDomain = errors.New("domain: invalid domain name")
	ErrDomainTaken   = errors.New("domain: domain bound to another tenant")
	ErrNoJob         = errors.New("domain: no claimable job")
	ErrUnauthorized  = errors.New("domain: unauthorized")
	ErrForbidden     = errors.New("domain: forbidden")
)
