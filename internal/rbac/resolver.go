package rbac

import (
	"context"

	"github.com/Nzyn/adavao-sub004/internal/shared"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns a permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a refusing decision naming the operation.
func Deny(operation string) Decision {
	return Decision{Reason: "Forbidden: you do not have permission to access restricted operation: " + operation}
}

// Catalog looks up the role set permitted for a protected operation. The
// second return value reports whether the operation is registered at all.
type Catalog interface {
	RolesForOperation(ctx context.Context, operation string) ([]string, bool, error)
}

// Authorizer decides whether a principal may perform an operation.
// legacyRoles is the static required-role set declared at the call site,
// retained for operations not yet migrated into the catalog.
type Authorizer interface {
	Authorize(ctx context.Context, principal shared.Principal, operation string, legacyRoles ...string) (Decision, error)
}

// Resolver implements the ordered resolution chain: dynamic catalog, then
// super_admin break-glass, then legacy call-site fallback.
type Resolver struct {
	catalog Catalog
}

// NewResolver constructs a Resolver over the given catalog.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Authorize resolves the decision for principal and operation. It is pure
// apart from catalog reads and safe for concurrent use.
func (r *Resolver) Authorize(ctx context.Context, principal shared.Principal, operation string, legacyRoles ...string) (Decision, error) {
	held := NormalizeRoles(principal.Roles)

	permitted, registered, err := r.catalog.RolesForOperation(ctx, operation)
	if err != nil {
		return Decision{}, err
	}
	if registered && intersects(held, NormalizeRoles(permitted)) {
		return Allow(), nil
	}

	// Break-glass: a super admin must never be locked out by catalog
	// omission.
	if containsRole(held, RoleSuperAdmin) {
		return Allow(), nil
	}

	// Call-site fallback. It applies to registered operations too, so
	// seeding the catalog never revokes access a route already granted.
	// The admin-hierarchy widening only exists on the pre-catalog path;
	// a registered operation matches the declared set as written.
	fallback := legacyRoles
	if !registered {
		fallback = expandLegacy(legacyRoles)
	}
	if intersects(held, fallback) {
		return Allow(), nil
	}

	return Deny(operation), nil
}

// expandLegacy widens call-site role declarations the way the pre-catalog
// checks did: requiring "admin" also admits the admin role hierarchy.
func expandLegacy(declared []string) []string {
	out := make([]string, 0, len(declared)+2)
	for _, role := range declared {
		out = append(out, role)
		if role == RoleAdmin {
			out = append(out, RoleSuperAdmin, RoleStationAdmin)
		}
	}
	return out
}

func containsRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func intersects(held, permitted []string) bool {
	if len(held) == 0 || len(permitted) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(permitted))
	for _, r := range permitted {
		set[r] = struct{}{}
	}
	for _, r := range held {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

var _ Authorizer = (*Resolver)(nil)
