package moderation

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Nzyn/adavao-sub004/internal/platform/httpx"
	"github.com/Nzyn/adavao-sub004/internal/rbac"
	"github.com/Nzyn/adavao-sub004/internal/shared"
)

// Handler manages moderation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		rbac:     rbacMW,
	}
}

// MountRoutes registers moderation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.OpUsersFlag, rbac.RoleAdmin, rbac.RolePolice))
		r.Post("/users/{id}/flag", h.flagUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.OpUsersUnflag, rbac.RoleAdmin, rbac.RolePolice))
		r.Post("/users/{id}/unflag", h.unflagUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.OpUsersFlags, rbac.RoleAdmin, rbac.RolePolice))
		r.Get("/api/users/{id}/flags", h.flagHistory)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.OpUsersFlagStatus, rbac.RoleAdmin, rbac.RolePolice))
		r.Get("/api/users/{id}/flag-status", h.flagStatus)
	})
}

type flagRequest struct {
	ViolationType string `json:"violation_type" validate:"required,oneof=false_report prank_spam harassment offensive_content impersonation multiple_accounts system_abuse inappropriate_media misleading_info other"`
	Reason        string `json:"reason" validate:"omitempty,max=500"`
	DurationDays  int    `json:"duration_days" validate:"required,oneof=1 3 7 30"`
}

type flagView struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	ViolationType string     `json:"violation_type"`
	Reason        string     `json:"reason,omitempty"`
	Status        FlagStatus `json:"status"`
	DurationDays  int        `json:"duration_days"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toFlagView(f Flag) flagView {
	return flagView{
		ID:            f.ID,
		UserID:        f.UserID,
		ViolationType: f.ViolationType,
		Reason:        f.Reason,
		Status:        f.Status,
		DurationDays:  f.DurationDays,
		ExpiresAt:     f.ExpiresAt,
		CreatedAt:     f.CreatedAt,
	}
}

func (h *Handler) flagUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	var req flagRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())

	flag, err := h.service.FlagUser(r.Context(), principal.UserID, userID, req.ViolationType, req.Reason, req.DurationDays)
	if err != nil {
		h.respondError(w, "flag user", err)
		return
	}
	httpx.OK(w, "User has been flagged successfully", map[string]any{
		"flag":                toFlagView(flag),
		"restriction_applied": string(RestrictionWarning),
		"duration_days":       req.DurationDays,
	})
}

func (h *Handler) unflagUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())

	if err := h.service.UnflagUser(r.Context(), principal.UserID, userID); err != nil {
		h.respondError(w, "unflag user", err)
		return
	}
	httpx.OK(w, "User restrictions have been removed successfully", nil)
}

func (h *Handler) flagHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	flags, pagination, err := h.service.FlagHistory(r.Context(), userID, page, perPage)
	if err != nil {
		h.respondError(w, "flag history", err)
		return
	}
	views := make([]flagView, len(flags))
	for i, f := range flags {
		views[i] = toFlagView(f)
	}
	httpx.OK(w, "", map[string]any{"flags": views, "pagination": pagination})
}

func (h *Handler) flagStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.FlagStatus(r.Context(), userID)
	if err != nil {
		h.respondError(w, "flag status", err)
		return
	}
	data := map[string]any{
		"is_flagged":        summary.IsFlagged,
		"total_flags":       summary.Rollup.TotalFlags,
		"restriction_level": summary.Rollup.RestrictionLevel,
	}
	if summary.Restriction != nil {
		data["restriction"] = map[string]any{
			"type":       summary.Restriction.Type,
			"reason":     summary.Restriction.Reason,
			"expires_at": summary.Restriction.ExpiresAt,
		}
	}
	if summary.LatestFlag != nil {
		data["latest_flag"] = toFlagView(*summary.LatestFlag)
	}
	httpx.OK(w, "", data)
}

func (h *Handler) pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "User not found")
		return
	}
	h.logger.Error(action, slog.Any("error", err))
	httpx.Fail(w, http.StatusInternalServerError, "An error occurred")
}
