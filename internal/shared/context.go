package shared

import (
	"context"
	"strings"
)

type principalContextKey struct{}

// Principal is the authenticated actor attached to a request.
type Principal struct {
	UserID       int64
	Name         string
	Capabilities []string
}

// Has reports whether the principal carries the capability. Capability names are
// compared case-insensitively.
func (p *Principal) Has(capability string) bool {
	if p == nil {
		return false
	}
	capability = strings.ToLower(strings.TrimSpace(capability))
	for _, c := range p.Capabilities {
		if strings.ToLower(c) == capability {
			return true
		}
	}
	return false
}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// CurrentUserID returns the authenticated user id or nil for anonymous calls.
func CurrentUserID(ctx context.Context) *int64 {
	p := PrincipalFromContext(ctx)
	if p == nil || p.UserID <= 0 {
		return nil
	}
	id := p.UserID
	return &id
}

// CurrentUserHas reports whether the authenticated user holds capability.
func CurrentUserHas(ctx context.Context, capability string) bool {
	return PrincipalFromContext(ctx).Has(capability)
}
