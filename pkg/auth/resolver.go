package auth

import (
	"context"
	"crypto/subtle"

	"nffg-orchestrator/pkg/errors"
)

// User is one configured principal with its tenant scope
type User struct {
	Username  string
	Password  string
	TenantID  string
	Roles     []string
	Resources []string
}

// TenantResolver maps an authenticated principal to a tenant scope. The
// engine consumes its output and never sees raw credentials.
type TenantResolver interface {
	// Authenticate checks raw credentials and resolves the tenant
	Authenticate(ctx context.Context, username, password string) (*TenantContext, error)

	// Resolve maps already-verified token claims to the tenant scope
	Resolve(ctx context.Context, claims *Claims) (*TenantContext, error)
}

// StaticResolver resolves tenants from a configured user list. It
// stands in for the external identity service in deployments that do
// not have one.
type StaticResolver struct {
	byUsername map[string]User
}

// NewStaticResolver creates a resolver over configured users
func NewStaticResolver(users []User) *StaticResolver {
	byUsername := make(map[string]User, len(users))
	for _, u := range users {
		byUsername[u.Username] = u
	}
	return &StaticResolver{byUsername: byUsername}
}

// Authenticate checks the credentials against the configured users
func (r *StaticResolver) Authenticate(_ context.Context, username, password string) (*TenantContext, error) {
	user, ok := r.byUsername[username]
	// Constant-time comparison even for unknown users
	match := subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) == 1
	if !ok || !match {
		return nil, errors.NewUnauthorizedError("invalid credentials")
	}
	return r.tenantContext(user), nil
}

// Resolve maps verified claims back to the configured tenant scope so
// resource grants revoked since token issuance take effect immediately.
func (r *StaticResolver) Resolve(_ context.Context, claims *Claims) (*TenantContext, error) {
	user, ok := r.byUsername[claims.Username]
	if !ok || user.TenantID != claims.TenantID {
		return nil, errors.NewUnauthorizedError("unknown principal")
	}
	return r.tenantContext(user), nil
}

func (r *StaticResolver) tenantContext(user User) *TenantContext {
	roles := user.Roles
	if len(roles) == 0 {
		roles = []string{"tenant"}
	}
	return &TenantContext{
		TenantID:  user.TenantID,
		Username:  user.Username,
		Roles:     roles,
		Resources: user.Resources,
	}
}
