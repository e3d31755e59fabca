package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Nzyn/adavao-sub004/internal/platform/httpx"
	"github.com/Nzyn/adavao-sub004/internal/rbac"
	"github.com/Nzyn/adavao-sub004/internal/shared"
)

// Handler manages report re-scoring endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers report scoring routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.OpReportsRescore, rbac.RoleAdmin))
		r.Post("/api/reports/rescore", h.rescore)
	})
}

type rescoreRequest struct {
	Reports []RescorePair `json:"reports"`
}

func (h *Handler) rescore(w http.ResponseWriter, r *http.Request) {
	var req rescoreRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Reports) == 0 {
		httpx.Fail(w, http.StatusBadRequest, "no reports supplied")
		return
	}
	stats := h.service.Rescore(r.Context(), req.Reports)
	httpx.OK(w, "Rescore completed", stats)
}
