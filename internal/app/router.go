package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Nzyn/adavao-sub004/internal/moderation"
	"github.com/Nzyn/adavao-sub004/internal/observability"
	"github.com/Nzyn/adavao-sub004/internal/rbac"
	"github.com/Nzyn/adavao-sub004/internal/reports"
	"github.com/Nzyn/adavao-sub004/internal/shared"
	"github.com/Nzyn/adavao-sub004/jobs"
)

// RouterConfig collects the handlers mounted on the HTTP surface.
type RouterConfig struct {
	Middleware MiddlewareConfig
	RBAC       rbac.Middleware
	Moderation *moderation.Handler
	Reports    *reports.Handler
	Jobs       *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter assembles the chi router.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(cfg.Middleware) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.Jobs != nil {
		r.Route("/jobs", cfg.Jobs.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(cfg.RBAC.LoadPrincipal)
		if cfg.Moderation != nil {
			cfg.Moderation.MountRoutes(r)
		}
		if cfg.Reports != nil {
			cfg.Reports.MountRoutes(r)
		}
		if cfg.Jobs != nil {
			cfg.Jobs.MountAdminRoutes(r, cfg.RBAC.Require(shared.OpJobsExpireFlags, rbac.RoleAdmin))
		}
	})

	return r
}
