package shared

import "context"

// Principal describes the authenticated actor attached to a request. Role
// names are the raw labels as stored; consumers normalize legacy labels
// before comparing them.
type Principal struct {
	UserID int64
	Roles  []string
}

// HasRole reports whether the principal carries the given raw role label.
func (p Principal) HasRole(name string) bool {
	for _, r := range p.Roles {
		if r == name {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
