package rbac

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Nzyn/adavao-sub004/internal/shared"
)

type stubCatalog struct {
	ops map[string][]string
	err error
}

func (s *stubCatalog) RolesForOperation(ctx context.Context, operation string) ([]string, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	roles, ok := s.ops[operation]
	return roles, ok, nil
}

func principal(roles ...string) shared.Principal {
	return shared.Principal{UserID: 1, Roles: roles}
}

func TestAuthorizeCatalogGrant(t *testing.T) {
	resolver := NewResolver(&stubCatalog{ops: map[string][]string{
		shared.OpUsersFlag: {RoleAdmin, RolePolice},
	}})

	decision, err := resolver.Authorize(context.Background(), principal(RolePolice), shared.OpUsersFlag)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allow, got deny: %s", decision.Reason)
	}
}

func TestAuthorizeRegisteredOpKeepsDeclaredFallback(t *testing.T) {
	// Registering an operation must never revoke access its route already
	// granted: the call-site role set stays in effect alongside the
	// catalog.
	resolver := NewResolver(&stubCatalog{ops: map[string][]string{
		shared.OpUsersFlag: {RoleAdmin},
	}})

	decision, err := resolver.Authorize(context.Background(), principal(RolePolice), shared.OpUsersFlag, RolePolice)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("declared role must still pass a registered operation, got deny: %s", decision.Reason)
	}
}

func TestAuthorizeRegisteredOpDeniesOutsideBothSets(t *testing.T) {
	resolver := NewResolver(&stubCatalog{ops: map[string][]string{
		shared.OpUsersFlag: {RoleAdmin},
	}})

	decision, err := resolver.Authorize(context.Background(), principal(RoleUser), shared.OpUsersFlag, RolePolice)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected deny for role in neither catalog nor declared set")
	}
}

func TestAuthorizeRegisteredOpDoesNotExpandDeclaredAdmin(t *testing.T) {
	// The admin-hierarchy widening belongs to the pre-catalog path only.
	// Once an operation is registered, declaring "admin" admits admin,
	// not station_admin.
	resolver := NewResolver(&stubCatalog{ops: map[string][]string{
		shared.OpUsersFlag: {RoleAdmin},
	}})

	decision, err := resolver.Authorize(context.Background(), principal(RoleStationAdmin), shared.OpUsersFlag, RoleAdmin)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("declared admin must not admit station_admin on a registered operation")
	}
}

func TestAuthorizeSuperAdminBreakGlass(t *testing.T) {
	resolver := NewResolver(&stubCatalog{})

	decision, err := resolver.Authorize(context.Background(), principal(RoleSuperAdmin), "some.unregistered.operation")
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("super admin must pass any operation, got deny: %s", decision.Reason)
	}
}

func TestAuthorizeLegacyFallback(t *testing.T) {
	resolver := NewResolver(&stubCatalog{})

	decision, err := resolver.Authorize(context.Background(), principal(RolePolice), shared.OpUsersFlag, RoleAdmin, RolePolice)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected legacy fallback allow, got deny: %s", decision.Reason)
	}
}

func TestAuthorizeLegacyAdminAdmitsHierarchy(t *testing.T) {
	resolver := NewResolver(&stubCatalog{})

	for _, role := range []string{RoleAdmin, RoleSuperAdmin, RoleStationAdmin} {
		decision, err := resolver.Authorize(context.Background(), principal(role), shared.OpReportsRescore, RoleAdmin)
		if err != nil {
			t.Fatalf("Authorize(%s) returned error: %v", role, err)
		}
		if !decision.Allowed {
			t.Fatalf("declaring admin must admit %s, got deny", role)
		}
	}
}

func TestAuthorizeNormalizesLegacyPoliceRole(t *testing.T) {
	resolver := NewResolver(&stubCatalog{ops: map[string][]string{
		shared.OpUsersFlag: {RolePolice},
	}})

	decision, err := resolver.Authorize(context.Background(), principal("police_officer"), shared.OpUsersFlag)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("police_officer must be treated as police, got deny: %s", decision.Reason)
	}
}

func TestAuthorizeDenyNamesOperation(t *testing.T) {
	resolver := NewResolver(&stubCatalog{})

	decision, err := resolver.Authorize(context.Background(), principal(RoleUser), shared.OpUsersUnflag, RoleAdmin)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected deny for plain user")
	}
	if !strings.Contains(decision.Reason, shared.OpUsersUnflag) {
		t.Fatalf("deny reason must name the operation, got %q", decision.Reason)
	}
}

func TestAuthorizeCatalogError(t *testing.T) {
	resolver := NewResolver(&stubCatalog{err: errors.New("connection refused")})

	if _, err := resolver.Authorize(context.Background(), principal(RoleAdmin), shared.OpUsersFlag); err == nil {
		t.Fatal("expected catalog error to propagate")
	}
}
