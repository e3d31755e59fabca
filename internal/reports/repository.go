package reports

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nzyn/adavao-sub004/internal/shared"
)

// Report carries the columns the engine touches: the crime-type labels it
// reads and the urgency score it writes. Everything else on the report row
// belongs to the reporting subsystem.
type Report struct {
	ID           int64
	RawType      string
	UrgencyScore int
}

// Repository provides PostgreSQL backed persistence for report scoring.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListReports returns every report's id, raw crime type, and current score.
func (r *Repository) ListReports(ctx context.Context) ([]Report, error) {
	rows, err := r.pool.Query(ctx, `SELECT report_id, COALESCE(report_type, ''), COALESCE(urgency_score, 0) FROM reports ORDER BY report_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []Report
	for rows.Next() {
		var report Report
		if err := rows.Scan(&report.ID, &report.RawType, &report.UrgencyScore); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

// UpdateUrgencyScore writes the derived score onto the report record.
func (r *Repository) UpdateUrgencyScore(ctx context.Context, reportID int64, score int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reports SET urgency_score = $1 WHERE report_id = $2`, score, reportID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
