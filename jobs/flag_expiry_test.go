package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Nzyn/adavao-sub004/internal/moderation"
	"github.com/Nzyn/adavao-sub004/internal/notify"
)

// ledgerStore mimics the expire cascade over an in-memory ledger: the flag
// flips to expired, the user's restriction is lifted when no active flags
// remain, and the rollup is rewritten.
type ledgerStore struct {
	flags        map[int64]*moderation.Flag
	restrictions map[int64]*moderation.Restriction
	rollups      map[int64]moderation.Rollup

	dueErr     error
	cascadeErr map[int64]error
}

func newLedgerStore() *ledgerStore {
	return &ledgerStore{
		flags:        make(map[int64]*moderation.Flag),
		restrictions: make(map[int64]*moderation.Restriction),
		rollups:      make(map[int64]moderation.Rollup),
		cascadeErr:   make(map[int64]error),
	}
}

func (s *ledgerStore) addFlag(f moderation.Flag) {
	copied := f
	s.flags[f.ID] = &copied
	if f.Status == moderation.FlagConfirmed {
		s.restrictions[f.UserID] = &moderation.Restriction{
			UserID:   f.UserID,
			Type:     string(moderation.RestrictionWarning),
			IsActive: true,
		}
	}
	s.recomputeRollup(f.UserID, time.Time{})
}

func (s *ledgerStore) DueFlags(ctx context.Context, asOf time.Time) ([]moderation.Flag, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	var due []moderation.Flag
	for _, f := range s.flags {
		if f.Status == moderation.FlagConfirmed && f.ExpiresAt != nil && !f.ExpiresAt.After(asOf) {
			due = append(due, *f)
		}
	}
	return due, nil
}

func (s *ledgerStore) ExpireFlagCascade(ctx context.Context, flag moderation.Flag, asOf time.Time) (int, bool, error) {
	if err := s.cascadeErr[flag.ID]; err != nil {
		return 0, false, err
	}
	stored, ok := s.flags[flag.ID]
	if !ok || stored.Status != moderation.FlagConfirmed {
		return s.activeCount(flag.UserID, asOf), false, nil
	}
	stored.Status = moderation.FlagExpired

	remaining := s.activeCount(flag.UserID, asOf)
	if remaining == 0 {
		if r := s.restrictions[flag.UserID]; r != nil && r.IsActive {
			r.IsActive = false
			at := asOf
			r.LiftedAt = &at
		}
	}
	s.recomputeRollup(flag.UserID, asOf)
	return remaining, true, nil
}

func (s *ledgerStore) activeCount(userID int64, asOf time.Time) int {
	n := 0
	for _, f := range s.flags {
		if f.UserID != userID || f.Status != moderation.FlagConfirmed {
			continue
		}
		if f.ExpiresAt == nil || f.ExpiresAt.After(asOf) {
			n++
		}
	}
	return n
}

func (s *ledgerStore) recomputeRollup(userID int64, asOf time.Time) {
	count := s.activeCount(userID, asOf)
	s.rollups[userID] = moderation.Rollup{
		TotalFlags:       count,
		RestrictionLevel: moderation.DeriveRestrictionLevel(count),
	}
}

type recordingEmitter struct {
	events []notify.ModerationEvent
	err    error
}

func (e *recordingEmitter) Create(ctx context.Context, event notify.ModerationEvent) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

func sweepFixture(t *testing.T, store FlagStore, emitter notify.Emitter, now time.Time) *FlagExpiryJob {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	job := NewFlagExpiryJob(store, emitter, logger, nil)
	job.clock = func() time.Time { return now }
	return job
}

func runSweep(t *testing.T, job *FlagExpiryJob, payload ExpireFlagsPayload) error {
	t.Helper()
	task, err := NewExpireFlagsTask(payload)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return job.Handle(context.Background(), task)
}

func TestFlagExpirySweep(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	pastExpiry := now.Add(-time.Hour)
	store := newLedgerStore()
	store.addFlag(moderation.Flag{
		ID:            7,
		UserID:        42,
		ViolationType: moderation.ViolationFalseReport,
		Status:        moderation.FlagConfirmed,
		ExpiresAt:     &pastExpiry,
	})
	emitter := &recordingEmitter{}
	job := sweepFixture(t, store, emitter, now)

	if err := runSweep(t, job, ExpireFlagsPayload{}); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if store.flags[7].Status != moderation.FlagExpired {
		t.Fatalf("expected flag expired, got %s", store.flags[7].Status)
	}
	restriction := store.restrictions[42]
	if restriction.IsActive || restriction.LiftedAt == nil {
		t.Fatalf("expected restriction lifted, got %+v", restriction)
	}
	if rollup := store.rollups[42]; rollup.TotalFlags != 0 || rollup.RestrictionLevel != moderation.RestrictionNone {
		t.Fatalf("unexpected rollup: %+v", rollup)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.Kind != notify.KindFlagExpired || event.UserID != 42 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Data["flag_id"] != int64(7) {
		t.Fatalf("event must carry the flag id, got %v", event.Data["flag_id"])
	}
	if event.Data["remaining_flags"] != 0 {
		t.Fatalf("expected zero remaining flags in event, got %v", event.Data["remaining_flags"])
	}
}

func TestFlagExpirySweepIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	pastExpiry := now.Add(-time.Minute)
	store := newLedgerStore()
	store.addFlag(moderation.Flag{ID: 1, UserID: 5, Status: moderation.FlagConfirmed, ExpiresAt: &pastExpiry})
	emitter := &recordingEmitter{}
	job := sweepFixture(t, store, emitter, now)

	if err := runSweep(t, job, ExpireFlagsPayload{}); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if err := runSweep(t, job, ExpireFlagsPayload{}); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if len(emitter.events) != 1 {
		t.Fatalf("re-running the sweep must not duplicate events, got %d", len(emitter.events))
	}
}

func TestFlagExpirySweepKeepsRestrictionWhileFlagsRemain(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	pastExpiry := now.Add(-time.Hour)
	futureExpiry := now.Add(48 * time.Hour)
	store := newLedgerStore()
	store.addFlag(moderation.Flag{ID: 1, UserID: 5, Status: moderation.FlagConfirmed, ExpiresAt: &pastExpiry})
	store.addFlag(moderation.Flag{ID: 2, UserID: 5, Status: moderation.FlagConfirmed, ExpiresAt: &futureExpiry})
	emitter := &recordingEmitter{}
	job := sweepFixture(t, store, emitter, now)

	if err := runSweep(t, job, ExpireFlagsPayload{}); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if !store.restrictions[5].IsActive {
		t.Fatal("restriction must stay active while another flag is live")
	}
	if rollup := store.rollups[5]; rollup.TotalFlags != 1 || rollup.RestrictionLevel != moderation.RestrictionWarning {
		t.Fatalf("unexpected rollup: %+v", rollup)
	}
	if len(emitter.events) != 1 || emitter.events[0].Data["remaining_flags"] != 1 {
		t.Fatalf("unexpected events: %+v", emitter.events)
	}
}

func TestFlagExpirySweepRowFailureContinues(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	pastExpiry := now.Add(-time.Hour)
	store := newLedgerStore()
	store.addFlag(moderation.Flag{ID: 1, UserID: 5, Status: moderation.FlagConfirmed, ExpiresAt: &pastExpiry})
	store.addFlag(moderation.Flag{ID: 2, UserID: 6, Status: moderation.FlagConfirmed, ExpiresAt: &pastExpiry})
	store.cascadeErr[1] = errors.New("deadlock detected")
	emitter := &recordingEmitter{}
	job := sweepFixture(t, store, emitter, now)

	if err := runSweep(t, job, ExpireFlagsPayload{}); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if store.flags[1].Status != moderation.FlagConfirmed {
		t.Fatal("failed flag must be left for the next sweep")
	}
	if store.flags[2].Status != moderation.FlagExpired {
		t.Fatal("failure on one flag must not stop the run")
	}
	if len(emitter.events) != 1 || emitter.events[0].UserID != 6 {
		t.Fatalf("unexpected events: %+v", emitter.events)
	}
}

func TestFlagExpirySweepEmitterFailureDoesNotRollBack(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	pastExpiry := now.Add(-time.Hour)
	store := newLedgerStore()
	store.addFlag(moderation.Flag{ID: 1, UserID: 5, Status: moderation.FlagConfirmed, ExpiresAt: &pastExpiry})
	job := sweepFixture(t, store, &recordingEmitter{err: errors.New("notifications unavailable")}, now)

	if err := runSweep(t, job, ExpireFlagsPayload{}); err != nil {
		t.Fatalf("emitter failure must not fail the sweep: %v", err)
	}
	if store.flags[1].Status != moderation.FlagExpired {
		t.Fatal("transition must survive emitter failure")
	}
}

func TestFlagExpirySweepDryRun(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	pastExpiry := now.Add(-time.Hour)
	store := newLedgerStore()
	store.addFlag(moderation.Flag{ID: 1, UserID: 5, Status: moderation.FlagConfirmed, ExpiresAt: &pastExpiry})
	emitter := &recordingEmitter{}
	job := sweepFixture(t, store, emitter, now)

	if err := runSweep(t, job, ExpireFlagsPayload{DryRun: true}); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if store.flags[1].Status != moderation.FlagConfirmed {
		t.Fatal("dry run must not transition flags")
	}
	if len(emitter.events) != 0 {
		t.Fatalf("dry run must not emit events, got %d", len(emitter.events))
	}
}

func TestFlagExpirySweepBadPayloadSkipsRetry(t *testing.T) {
	store := newLedgerStore()
	job := sweepFixture(t, store, &recordingEmitter{}, time.Now().UTC())

	task := asynq.NewTask(TaskModerationExpireFlags, []byte("{not json"))
	if err := job.Handle(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
