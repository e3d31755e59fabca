package jobs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
)

type stubEnqueuer struct {
	payloads []ExpireFlagsPayload
	err      error
}

func (s *stubEnqueuer) EnqueueExpireFlags(ctx context.Context, payload ExpireFlagsPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.payloads = append(s.payloads, payload)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func triggerRouter(enqueuer SweepEnqueuer) http.Handler {
	handler := NewHandler(nil, enqueuer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	passthrough := func(next http.Handler) http.Handler { return next }
	handler.MountAdminRoutes(r, passthrough)
	return r
}

func TestExpireFlagsTrigger(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	router := triggerRouter(enqueuer)

	req := httptest.NewRequest(http.MethodPost, "/jobs/expire-flags", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(enqueuer.payloads) != 1 || enqueuer.payloads[0].DryRun {
		t.Fatalf("expected one full-sweep enqueue, got %+v", enqueuer.payloads)
	}
	if !strings.Contains(rec.Body.String(), `"task_id":"task-1"`) {
		t.Fatalf("response must carry the task id: %s", rec.Body.String())
	}
}

func TestExpireFlagsTriggerDryRun(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	router := triggerRouter(enqueuer)

	req := httptest.NewRequest(http.MethodPost, "/jobs/expire-flags", strings.NewReader(`{"dry_run":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(enqueuer.payloads) != 1 || !enqueuer.payloads[0].DryRun {
		t.Fatalf("dry_run not forwarded: %+v", enqueuer.payloads)
	}
}

func TestExpireFlagsTriggerDuplicate(t *testing.T) {
	router := triggerRouter(&stubEnqueuer{err: asynq.ErrDuplicateTask})

	req := httptest.NewRequest(http.MethodPost, "/jobs/expire-flags", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("queued sweep must report conflict, got %d", rec.Code)
	}
}
