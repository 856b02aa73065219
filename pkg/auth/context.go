package auth

import (
	"context"

	"nffg-orchestrator/pkg/errors"
)

// TenantContext is the resolved identity the engine operates under. It
// is produced by the session resolver; the engine treats it as an
// opaque capability token scoping which graphs are visible and which
// external resources may be referenced.
type TenantContext struct {
	TenantID string
	Username string
	Roles    []string

	// Resources lists the identifiers of pre-existing endpoint
	// resources the tenant owns
	Resources []string
}

// OwnsResource reports whether the tenant may reference the given
// pre-existing endpoint resource.
func (t *TenantContext) OwnsResource(resourceID string) bool {
	for _, r := range t.Resources {
		if r == resourceID {
			return true
		}
	}
	return false
}

type contextKey string

const tenantContextKey contextKey = "tenantContext"

// SetTenantInContext attaches the resolved tenant to a request context
func SetTenantInContext(ctx context.Context, tenant *TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey, tenant)
}

// GetTenantFromContext extracts the resolved tenant from a context
func GetTenantFromContext(ctx context.Context) (*TenantContext, error) {
	tenant, ok := ctx.Value(tenantContextKey).(*TenantContext)
	if !ok || tenant == nil {
		return nil, errors.NewUnauthorizedError("no tenant in request context")
	}
	return tenant, nil
}
