package authz

import (
	"context"

	"github.com/finquery/finquery/internal/identity"
)

// Principal is the authenticated caller with resolved permissions.
type Principal struct {
	User        *identity.User
	Permissions PermissionSet
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
