package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nzyn/adavao-sub004/internal/shared"
)

// ErrDuplicate indicates the role grant or assignment already exists.
var ErrDuplicate = errors.New("rbac: duplicate")

// Repository defines persistence operations for the permission catalog.
type Repository interface {
	Catalog
	UserRoleNames(ctx context.Context, userID int64) ([]string, error)
	RoleByName(ctx context.Context, name string) (Role, error)
	RegisterOperation(ctx context.Context, name string) (ProtectedOperation, error)
	GrantOperationToRole(ctx context.Context, operationID, roleID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// UserRoleNames returns the raw role labels held by a user: every assigned
// role plus the legacy single-value role attribute on the user record.
func (r *PGRepository) UserRoleNames(ctx context.Context, userID int64) ([]string, error) {
	var legacyRole *string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users_public WHERE id = $1`, userID).Scan(&legacyRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT r.role_name FROM roles r JOIN user_roles ur ON ur.role_id = r.id WHERE ur.user_id = $1 ORDER BY r.role_name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if legacyRole != nil && *legacyRole != "" {
		if _, ok := seen[*legacyRole]; !ok {
			names = append(names, *legacyRole)
		}
	}
	return names, nil
}

// RolesForOperation returns the role names permitted for the operation and
// whether the operation is registered in the catalog at all.
func (r *PGRepository) RolesForOperation(ctx context.Context, operation string) ([]string, bool, error) {
	var registered bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM protected_operations WHERE operation_name = $1)`, operation).Scan(&registered)
	if err != nil {
		return nil, false, err
	}
	if !registered {
		return nil, false, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT r.role_name FROM roles r JOIN role_operations ro ON ro.role_id = r.id JOIN protected_operations po ON po.id = ro.operation_id WHERE po.operation_name = $1 ORDER BY r.role_name`, operation)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, false, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return names, true, nil
}

// RegisterOperation inserts a protected operation, returning the existing row
// when the name is already registered.
func (r *PGRepository) RegisterOperation(ctx context.Context, name string) (ProtectedOperation, error) {
	var op ProtectedOperation
	err := r.pool.QueryRow(ctx, `INSERT INTO protected_operations (operation_name) VALUES ($1) ON CONFLICT (operation_name) DO UPDATE SET operation_name = EXCLUDED.operation_name RETURNING id, operation_name, created_at`, name).
		Scan(&op.ID, &op.Name, &op.CreatedAt)
	if err != nil {
		return ProtectedOperation{}, err
	}
	return op, nil
}

// RoleByName looks a role up by its name.
func (r *PGRepository) RoleByName(ctx context.Context, name string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, role_name, created_at, updated_at FROM roles WHERE role_name = $1`, name).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// GrantOperationToRole permits a role to perform an operation.
func (r *PGRepository) GrantOperationToRole(ctx context.Context, operationID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO role_operations (role_id, operation_id) VALUES ($1, $2)`, roleID, operationID)
	return mapDuplicate(err)
}

func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
