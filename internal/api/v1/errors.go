package v1

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tenantd/tenantd/internal/domain"
)

// mapError translates domain sentinels into huma status errors. Anything
// unrecognized is a 500 carrying op as the client-facing detail.
func mapError(err error, op string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidDomain):
		return huma.Error400BadRequest(domain.ErrInvalidDomain.Error())
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("tenant not found")
	case errors.Is(err, domain.ErrDomainTaken):
		return huma.Error409Conflict("domain is already bound to another tenant")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("tenant already has a domain binding; release it first")
	default:
		return huma.Error500InternalServerError("failed to "+op, err)
	}
}
