package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Nzyn/adavao-sub004/internal/shared"
)

// defaultOperationRoles maps each moderation operation onto the roles granted
// at seed time. The grants mirror the static declarations on the routes, so
// seeding changes where a decision comes from, not what it is.
var defaultOperationRoles = map[string][]string{
	shared.OpUsersFlag:       {RoleAdmin, RolePolice},
	shared.OpUsersUnflag:     {RoleAdmin, RolePolice},
	shared.OpUsersFlags:      {RoleAdmin, RolePolice},
	shared.OpUsersFlagStatus: {RoleAdmin, RolePolice},
	shared.OpReportsRescore:  {RoleAdmin},
	shared.OpJobsExpireFlags: {RoleAdmin},
}

// SeedStore is the slice of the repository the seeder needs.
type SeedStore interface {
	RoleByName(ctx context.Context, name string) (Role, error)
	RegisterOperation(ctx context.Context, name string) (ProtectedOperation, error)
	GrantOperationToRole(ctx context.Context, operationID, roleID int64) error
}

// SeedCatalog registers every moderation operation and grants it to its
// default roles. Registration is an upsert and duplicate grants are ignored,
// so running it on every startup is safe. Roles missing from the roles table
// are skipped with a warning; role rows are owned by the platform's
// migrations, not this engine.
func SeedCatalog(ctx context.Context, store SeedStore, logger *slog.Logger) error {
	for _, name := range shared.ModerationScopes() {
		op, err := store.RegisterOperation(ctx, name)
		if err != nil {
			return fmt.Errorf("rbac: register operation %s: %w", name, err)
		}
		for _, roleName := range defaultOperationRoles[name] {
			role, err := store.RoleByName(ctx, roleName)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					if logger != nil {
						logger.Warn("seed catalog: role missing",
							slog.String("operation", name),
							slog.String("role", roleName),
						)
					}
					continue
				}
				return fmt.Errorf("rbac: look up role %s: %w", roleName, err)
			}
			if err := store.GrantOperationToRole(ctx, op.ID, role.ID); err != nil && !errors.Is(err, ErrDuplicate) {
				return fmt.Errorf("rbac: grant %s to %s: %w", name, roleName, err)
			}
		}
	}
	return nil
}
