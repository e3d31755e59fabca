package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Nzyn/adavao-sub004/internal/platform/httpx"
	"github.com/Nzyn/adavao-sub004/internal/shared"
)

// userIDHeader carries the authenticated user id, set by the session layer in
// front of this service. Authentication itself happens upstream.
const userIDHeader = "X-User-ID"

// RoleSource loads the raw role labels a user holds.
type RoleSource interface {
	UserRoleNames(ctx context.Context, userID int64) ([]string, error)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Authorizer Authorizer
	Roles      RoleSource
	Logger     *slog.Logger
}

// LoadPrincipal resolves the acting principal from the request and stores it
// in context. Requests without a user id are rejected before any protected
// handler runs.
func (m Middleware) LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(userIDHeader))
		if raw == "" {
			httpx.Fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		roles, err := m.Roles.UserRoleNames(r.Context(), userID)
		if err != nil {
			if err == shared.ErrNotFound {
				httpx.Fail(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if m.Logger != nil {
				m.Logger.Error("rbac load principal", slog.Any("error", err))
			}
			httpx.Fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{UserID: userID, Roles: roles})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require guards a route with the named protected operation. legacyRoles is
// the static role set that applied before the operation was registered in the
// catalog; it keeps not-yet-seeded routes reachable.
func (m Middleware) Require(operation string, legacyRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			decision, err := m.Authorizer.Authorize(r.Context(), principal, operation, legacyRoles...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac authorize", slog.String("operation", operation), slog.Any("error", err))
				}
				httpx.Fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				return
			}
			if !decision.Allowed {
				if m.Logger != nil {
					m.Logger.Warn("authorization denied",
						slog.Int64("user_id", principal.UserID),
						slog.String("operation", operation),
					)
				}
				httpx.Fail(w, http.StatusForbidden, decision.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
