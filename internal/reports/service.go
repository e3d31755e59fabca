package reports

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Nzyn/adavao-sub004/internal/shared"
)

// RepositoryPort defines data access methods for report scoring.
type RepositoryPort interface {
	ListReports(ctx context.Context) ([]Report, error)
	UpdateUrgencyScore(ctx context.Context, reportID int64, score int) error
}

// RescorePair is one inbound re-scoring request.
type RescorePair struct {
	ReportID int64  `json:"report_id"`
	RawType  string `json:"report_type"`
}

// Stats summarises a scoring batch. The unit of failure is one report, never
// the batch: skipped and failed rows are counted, not fatal.
type Stats struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Service handles urgency score derivation.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// RecalculateAll re-derives the urgency score for every report.
func (s *Service) RecalculateAll(ctx context.Context) (Stats, error) {
	reports, err := s.repo.ListReports(ctx)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	for _, report := range reports {
		stats.Processed++
		s.score(ctx, RescorePair{ReportID: report.ID, RawType: report.RawType}, &stats)
	}
	return stats, nil
}

// Rescore scores the given {report_id, report_type} pairs.
func (s *Service) Rescore(ctx context.Context, pairs []RescorePair) Stats {
	var stats Stats
	for _, pair := range pairs {
		stats.Processed++
		s.score(ctx, pair, &stats)
	}
	return stats
}

func (s *Service) score(ctx context.Context, pair RescorePair, stats *Stats) {
	labels := ParseReportType(pair.RawType)
	score, err := Classify(labels)
	if err != nil {
		// Empty report type: keep the previous score untouched.
		stats.Skipped++
		return
	}
	if err := s.repo.UpdateUrgencyScore(ctx, pair.ReportID, score); err != nil {
		stats.Failed++
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("rescore unknown report", slog.Int64("report_id", pair.ReportID))
			return
		}
		s.logger.Error("update urgency score", slog.Int64("report_id", pair.ReportID), slog.Any("error", err))
		return
	}
	stats.Updated++
}
