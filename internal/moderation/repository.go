package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nzyn/adavao-sub004/internal/platform/db"
	"github.com/Nzyn/adavao-sub004/internal/shared"
)

// Repository defines persistence operations for the flag ledger and the
// restrictions derived from it.
type Repository interface {
	CreateFlag(ctx context.Context, flag Flag) (Flag, error)
	ListFlags(ctx context.Context, userID int64, limit, offset int) ([]Flag, error)
	CountFlags(ctx context.Context, userID int64) (int, error)
	ListConfirmedFlags(ctx context.Context, userID int64) ([]Flag, error)
	CountActiveFlags(ctx context.Context, userID int64, asOf time.Time) (int, error)
	DueFlags(ctx context.Context, asOf time.Time) ([]Flag, error)
	ExpireFlagCascade(ctx context.Context, flag Flag, asOf time.Time) (remaining int, changed bool, err error)
	ExpireAllFlags(ctx context.Context, userID int64) (int, error)
	EnsureRestriction(ctx context.Context, restriction Restriction) error
	ActiveRestriction(ctx context.Context, userID int64) (*Restriction, error)
	LiftAllRestrictions(ctx context.Context, userID int64, at time.Time) (int, error)
	UpdateRollup(ctx context.Context, userID int64, rollup Rollup) error
	UserExists(ctx context.Context, userID int64) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the cascade can
// share statements with the pool-backed paths.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const flagColumns = `id, user_id, reported_by, violation_type, COALESCE(description, ''), status, COALESCE(duration_days, 0), expires_at, created_at, updated_at`

func scanFlag(row pgx.Row) (Flag, error) {
	var f Flag
	err := row.Scan(&f.ID, &f.UserID, &f.ReportedBy, &f.ViolationType, &f.Reason, &f.Status, &f.DurationDays, &f.ExpiresAt, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func collectFlags(rows pgx.Rows) ([]Flag, error) {
	defer rows.Close()
	var flags []Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return flags, nil
}

// CreateFlag appends a violation to the ledger.
func (r *PGRepository) CreateFlag(ctx context.Context, flag Flag) (Flag, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO user_flags (user_id, reported_by, violation_type, description, status, duration_days, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING `+flagColumns,
		flag.UserID, flag.ReportedBy, flag.ViolationType, flag.Reason, FlagConfirmed, flag.DurationDays, flag.ExpiresAt)
	return scanFlag(row)
}

// ListFlags returns one page of the user's flag history, newest first.
func (r *PGRepository) ListFlags(ctx context.Context, userID int64, limit, offset int) ([]Flag, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+flagColumns+` FROM user_flags WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectFlags(rows)
}

// CountFlags returns the size of the user's full flag history.
func (r *PGRepository) CountFlags(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_flags WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// ListConfirmedFlags returns the user's flags still in confirmed status.
func (r *PGRepository) ListConfirmedFlags(ctx context.Context, userID int64) ([]Flag, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+flagColumns+` FROM user_flags WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC`, userID, FlagConfirmed)
	if err != nil {
		return nil, err
	}
	return collectFlags(rows)
}

// CountActiveFlags counts confirmed flags that are permanent or not yet past
// their expiry as of the given instant.
func (r *PGRepository) CountActiveFlags(ctx context.Context, userID int64, asOf time.Time) (int, error) {
	return countActiveFlags(ctx, r.pool, userID, asOf)
}

func countActiveFlags(ctx context.Context, q querier, userID int64, asOf time.Time) (int, error) {
	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM user_flags WHERE user_id = $1 AND status = $2 AND (expires_at IS NULL OR expires_at > $3)`, userID, FlagConfirmed, asOf).Scan(&count)
	return count, err
}

// DueFlags returns confirmed flags whose expiry has passed as of the sweep
// snapshot. Flags expiring mid-run are picked up by the next run.
func (r *PGRepository) DueFlags(ctx context.Context, asOf time.Time) ([]Flag, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+flagColumns+` FROM user_flags WHERE status = $1 AND expires_at IS NOT NULL AND expires_at <= $2 ORDER BY id`, FlagConfirmed, asOf)
	if err != nil {
		return nil, err
	}
	return collectFlags(rows)
}

// ExpireFlagCascade performs one flag's expiry transition as a single
// transaction: mark the flag expired, lift the user's due restrictions, and
// rewrite the rollup from the remaining ledger state. changed is false when
// the flag was no longer confirmed, which makes re-runs no-ops.
func (r *PGRepository) ExpireFlagCascade(ctx context.Context, flag Flag, asOf time.Time) (int, bool, error) {
	var remaining int
	var changed bool
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE user_flags SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`, FlagExpired, flag.ID, FlagConfirmed)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		changed = true

		if _, err := tx.Exec(ctx, `UPDATE user_restrictions SET is_active = FALSE, lifted_at = $1, updated_at = NOW() WHERE user_id = $2 AND is_active = TRUE AND expires_at IS NOT NULL AND expires_at <= $3`, asOf, flag.UserID, asOf); err != nil {
			return err
		}

		remaining, err = countActiveFlags(ctx, tx, flag.UserID, asOf)
		if err != nil {
			return err
		}
		return updateRollup(ctx, tx, flag.UserID, Rollup{TotalFlags: remaining, RestrictionLevel: DeriveRestrictionLevel(remaining)})
	})
	if err != nil {
		return 0, false, err
	}
	return remaining, changed, nil
}

// ExpireAllFlags transitions every confirmed flag for the user, returning the
// number affected. Used by unflag.
func (r *PGRepository) ExpireAllFlags(ctx context.Context, userID int64) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE user_flags SET status = $1, updated_at = NOW() WHERE user_id = $2 AND status = $3`, FlagExpired, userID, FlagConfirmed)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// EnsureRestriction creates a restriction unless the user already has an
// active one.
func (r *PGRepository) EnsureRestriction(ctx context.Context, restriction Restriction) error {
	existing, err := r.ActiveRestriction(ctx, restriction.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO user_restrictions (user_id, restriction_type, reason, is_active, expires_at, created_at, updated_at) VALUES ($1, $2, $3, TRUE, $4, NOW(), NOW())`,
		restriction.UserID, restriction.Type, restriction.Reason, restriction.ExpiresAt)
	return err
}

// ActiveRestriction returns the user's current active restriction, nil when
// none exists.
func (r *PGRepository) ActiveRestriction(ctx context.Context, userID int64) (*Restriction, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, user_id, restriction_type, COALESCE(reason, ''), is_active, expires_at, lifted_at, created_at FROM user_restrictions WHERE user_id = $1 AND is_active = TRUE ORDER BY created_at DESC LIMIT 1`, userID)
	var res Restriction
	err := row.Scan(&res.ID, &res.UserID, &res.Type, &res.Reason, &res.IsActive, &res.ExpiresAt, &res.LiftedAt, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// LiftAllRestrictions deactivates every active restriction for the user,
// stamping lifted_at exactly once.
func (r *PGRepository) LiftAllRestrictions(ctx context.Context, userID int64, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE user_restrictions SET is_active = FALSE, lifted_at = $1, updated_at = NOW() WHERE user_id = $2 AND is_active = TRUE`, at, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// UpdateRollup writes the derived rollup fields onto the user record.
func (r *PGRepository) UpdateRollup(ctx context.Context, userID int64, rollup Rollup) error {
	return updateRollup(ctx, r.pool, userID, rollup)
}

func updateRollup(ctx context.Context, q querier, userID int64, rollup Rollup) error {
	tag, err := q.Exec(ctx, `UPDATE users_public SET total_flags = $1, restriction_level = $2, updated_at = NOW() WHERE id = $3`, rollup.TotalFlags, rollup.RestrictionLevel, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UserExists reports shared.ErrNotFound when the user record is missing.
func (r *PGRepository) UserExists(ctx context.Context, userID int64) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users_public WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
