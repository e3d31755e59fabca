package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Nzyn/adavao-sub004/internal/notify"
	"github.com/Nzyn/adavao-sub004/internal/shared"
)

// Valid flag durations in days. A flag always carries a duration; permanent
// flags are created by support tooling, not this API.
var ValidDurations = []int{1, 3, 7, 30}

// Service wraps moderation business rules over the flag ledger.
// Authorization is the caller's job: handlers gate requests through the
// access resolver before the service runs.
type Service struct {
	repo    Repository
	emitter notify.Emitter
	audit   *shared.AuditLogger
	logger  *slog.Logger
	clock   func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, emitter notify.Emitter, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		emitter: emitter,
		audit:   audit,
		logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// FlagUser issues a violation flag against the account, applies a warning
// restriction when none is active, and recomputes the rollup.
func (s *Service) FlagUser(ctx context.Context, actorID, userID int64, violationType, reason string, durationDays int) (Flag, error) {
	if !validDuration(durationDays) {
		return Flag{}, fmt.Errorf("moderation: invalid flag duration %d", durationDays)
	}
	if err := s.repo.UserExists(ctx, userID); err != nil {
		return Flag{}, err
	}

	now := s.clock()
	expiresAt := now.AddDate(0, 0, durationDays)

	flag, err := s.repo.CreateFlag(ctx, Flag{
		UserID:        userID,
		ReportedBy:    actorID,
		ViolationType: violationType,
		Reason:        reason,
		DurationDays:  durationDays,
		ExpiresAt:     &expiresAt,
	})
	if err != nil {
		return Flag{}, fmt.Errorf("moderation: create flag: %w", err)
	}

	if err := s.repo.EnsureRestriction(ctx, Restriction{
		UserID:    userID,
		Type:      string(RestrictionWarning),
		Reason:    fmt.Sprintf("Flagged for %s - %d day(s)", violationType, durationDays),
		ExpiresAt: &expiresAt,
	}); err != nil {
		return Flag{}, fmt.Errorf("moderation: apply restriction: %w", err)
	}

	if _, err := s.RecomputeRollup(ctx, userID); err != nil {
		return Flag{}, err
	}

	s.emit(ctx, notify.ModerationEvent{
		UserID:  userID,
		Kind:    notify.KindAccountFlagged,
		Message: FlaggedMessage(violationType, durationDays),
		Data: map[string]any{
			"flag_id":             flag.ID,
			"violation_type":      violationType,
			"duration_days":       durationDays,
			"restriction_applied": string(RestrictionWarning),
		},
	})

	s.recordAudit(ctx, actorID, "user.flag", userID, map[string]any{
		"flag_id":        flag.ID,
		"violation_type": violationType,
		"duration_days":  durationDays,
	})

	s.logger.Info("user flagged",
		slog.Int64("flag_id", flag.ID),
		slog.Int64("user_id", userID),
		slog.String("violation_type", violationType),
		slog.Int("duration_days", durationDays),
	)
	return flag, nil
}

// UnflagUser expires all confirmed flags, lifts all active restrictions, and
// resets the rollup.
func (s *Service) UnflagUser(ctx context.Context, actorID, userID int64) error {
	if err := s.repo.UserExists(ctx, userID); err != nil {
		return err
	}

	now := s.clock()
	expired, err := s.repo.ExpireAllFlags(ctx, userID)
	if err != nil {
		return fmt.Errorf("moderation: expire flags: %w", err)
	}
	lifted, err := s.repo.LiftAllRestrictions(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("moderation: lift restrictions: %w", err)
	}
	if _, err := s.RecomputeRollup(ctx, userID); err != nil {
		return err
	}

	s.emit(ctx, notify.ModerationEvent{
		UserID:  userID,
		Kind:    notify.KindFlagsCleared,
		Message: ClearedMessage,
		Data: map[string]any{
			"flags_expired":       expired,
			"restrictions_lifted": lifted,
		},
	})

	s.recordAudit(ctx, actorID, "user.unflag", userID, map[string]any{
		"flags_expired":       expired,
		"restrictions_lifted": lifted,
	})

	s.logger.Info("user unflagged",
		slog.Int64("user_id", userID),
		slog.Int("flags_expired", expired),
		slog.Int("restrictions_lifted", lifted),
	)
	return nil
}

// FlagHistory returns one page of the user's flag ledger, newest first.
func (s *Service) FlagHistory(ctx context.Context, userID int64, page, perPage int) ([]Flag, shared.Pagination, error) {
	if err := s.repo.UserExists(ctx, userID); err != nil {
		return nil, shared.Pagination{}, err
	}
	total, err := s.repo.CountFlags(ctx, userID)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("moderation: count flags: %w", err)
	}
	p := shared.NewPagination(page, perPage, total)
	flags, err := s.repo.ListFlags(ctx, userID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("moderation: list flags: %w", err)
	}
	return flags, p, nil
}

// FlagStatus assembles the current standing of an account.
func (s *Service) FlagStatus(ctx context.Context, userID int64) (StatusSummary, error) {
	if err := s.repo.UserExists(ctx, userID); err != nil {
		return StatusSummary{}, err
	}
	now := s.clock()
	count, err := s.repo.CountActiveFlags(ctx, userID, now)
	if err != nil {
		return StatusSummary{}, err
	}
	restriction, err := s.repo.ActiveRestriction(ctx, userID)
	if err != nil {
		return StatusSummary{}, err
	}
	flags, err := s.repo.ListConfirmedFlags(ctx, userID)
	if err != nil {
		return StatusSummary{}, err
	}
	summary := StatusSummary{
		IsFlagged:   count > 0,
		Rollup:      Rollup{TotalFlags: count, RestrictionLevel: DeriveRestrictionLevel(count)},
		Restriction: restriction,
	}
	if len(flags) > 0 {
		summary.LatestFlag = &flags[0]
	}
	return summary, nil
}

// RecomputeRollup is the single entry point that rewrites total_flags and
// restriction_level from current ledger state. Every flag or restriction
// mutation funnels through here so the cached fields never drift.
func (s *Service) RecomputeRollup(ctx context.Context, userID int64) (Rollup, error) {
	count, err := s.repo.CountActiveFlags(ctx, userID, s.clock())
	if err != nil {
		return Rollup{}, fmt.Errorf("moderation: count active flags: %w", err)
	}
	rollup := Rollup{TotalFlags: count, RestrictionLevel: DeriveRestrictionLevel(count)}
	if err := s.repo.UpdateRollup(ctx, userID, rollup); err != nil {
		return Rollup{}, fmt.Errorf("moderation: update rollup: %w", err)
	}
	return rollup, nil
}

func (s *Service) emit(ctx context.Context, event notify.ModerationEvent) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Create(ctx, event); err != nil {
		// Ledger state is already committed; a lost notification is
		// reported, not rolled back.
		s.logger.Error("emit moderation event", slog.String("kind", event.Kind), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func validDuration(days int) bool {
	for _, d := range ValidDurations {
		if d == days {
			return true
		}
	}
	return false
}
