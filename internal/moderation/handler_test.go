package moderation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Nzyn/adavao-sub004/internal/rbac"
	"github.com/Nzyn/adavao-sub004/internal/shared"
)

type allowAll struct{}

func (allowAll) Authorize(ctx context.Context, principal shared.Principal, operation string, legacyRoles ...string) (rbac.Decision, error) {
	return rbac.Allow(), nil
}

func moderationRouter(repo Repository, emitter *stubEmitter) http.Handler {
	svc := testService(repo, emitter)
	handler := NewHandler(svc.logger, svc, rbac.Middleware{Authorizer: allowAll{}})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 9, Roles: []string{rbac.RoleAdmin}})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	handler.MountRoutes(r)
	return r
}

func TestFlagUserEndpoint(t *testing.T) {
	repo := newStubRepo(42)
	handler := moderationRouter(repo, &stubEmitter{})

	body := `{"violation_type":"false_report","reason":"fabricated report","duration_days":7}`
	req := httptest.NewRequest(http.MethodPost, "/users/42/flag", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.flags) != 1 {
		t.Fatalf("expected one flag persisted, got %d", len(repo.flags))
	}
	if repo.flags[0].ReportedBy != 9 {
		t.Fatalf("reported_by must be the acting principal, got %d", repo.flags[0].ReportedBy)
	}
	if !strings.Contains(rec.Body.String(), `"restriction_applied":"warning"`) {
		t.Fatalf("response must state the applied restriction: %s", rec.Body.String())
	}
}

func TestFlagUserEndpointValidation(t *testing.T) {
	repo := newStubRepo(42)
	handler := moderationRouter(repo, &stubEmitter{})

	cases := []struct {
		name string
		body string
		want int
	}{
		{"unknown violation", `{"violation_type":"rudeness","duration_days":7}`, http.StatusUnprocessableEntity},
		{"bad duration", `{"violation_type":"harassment","duration_days":5}`, http.StatusUnprocessableEntity},
		{"missing duration", `{"violation_type":"harassment"}`, http.StatusUnprocessableEntity},
		{"malformed body", `{"violation_type":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/users/42/flag", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
	if len(repo.flags) != 0 {
		t.Fatalf("no flags must be persisted, got %d", len(repo.flags))
	}
}

func TestFlagUserEndpointUnknownUser(t *testing.T) {
	handler := moderationRouter(newStubRepo(), &stubEmitter{})

	body := `{"violation_type":"other","duration_days":1}`
	req := httptest.NewRequest(http.MethodPost, "/users/404/flag", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUnflagUserEndpoint(t *testing.T) {
	repo := newStubRepo(42)
	emitter := &stubEmitter{}
	handler := moderationRouter(repo, emitter)

	body := `{"violation_type":"prank_spam","duration_days":3}`
	req := httptest.NewRequest(http.MethodPost, "/users/42/flag", strings.NewReader(body))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/users/42/unflag", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.flags[0].Status != FlagExpired {
		t.Fatalf("expected flag expired, got %s", repo.flags[0].Status)
	}
}

func TestFlagStatusEndpoint(t *testing.T) {
	repo := newStubRepo(42)
	handler := moderationRouter(repo, &stubEmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/42/flag-status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"is_flagged":false`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"restriction_level":"none"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestFlagHistoryEndpoint(t *testing.T) {
	repo := newStubRepo(42)
	handler := moderationRouter(repo, &stubEmitter{})

	body := `{"violation_type":"harassment","duration_days":1}`
	req := httptest.NewRequest(http.MethodPost, "/users/42/flag", strings.NewReader(body))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/users/42/flags?page=1&per_page=10", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"violation_type":"harassment"`) {
		t.Fatalf("history must list the flag: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) || !strings.Contains(rec.Body.String(), `"per_page":10`) {
		t.Fatalf("history must carry pagination metadata: %s", rec.Body.String())
	}
}

func TestFlagHistoryEndpointInvalidID(t *testing.T) {
	handler := moderationRouter(newStubRepo(42), &stubEmitter{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/abc/flags", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
