package rbac

import "time"

// Well-known role names. The catalog may define more; these are the ones the
// resolver treats specially.
const (
	RoleSuperAdmin   = "super_admin"
	RoleStationAdmin = "station_admin"
	RoleAdmin        = "admin"
	RolePolice       = "police"
	RoleUser         = "user"

	// legacyPoliceRole predates the current taxonomy and still exists on
	// older accounts.
	legacyPoliceRole = "police_officer"
)

// Role represents a named permission group.
type Role struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProtectedOperation is a named, routable action registered in the dynamic
// permission catalog. Operations absent from the catalog fall back to the
// static legacy rules declared at the call site.
type ProtectedOperation struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// NormalizeRole maps historical role labels onto the current taxonomy so old
// and new accounts interoperate without a data migration.
func NormalizeRole(name string) string {
	if name == legacyPoliceRole {
		return RolePolice
	}
	return name
}

// NormalizeRoles normalizes every label in the set, preserving order.
func NormalizeRoles(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = NormalizeRole(name)
	}
	return out
}
