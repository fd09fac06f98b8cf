package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"secretvault/internal/apperr"
	"secretvault/internal/directory"
	"secretvault/internal/logging"
	"secretvault/internal/middleware"
	"secretvault/internal/user"
)

// anonymousRole is shown for callers without a session.
const anonymousRole = "visiteur"

// ProfileSource fetches provider attributes for one user.
type ProfileSource interface {
	GetUser(ctx context.Context, id string) (*directory.Profile, error)
}

// AdminChecker is the non-failing admin probe.
type AdminChecker interface {
	CheckAdminStatus(ctx context.Context, callerID string) bool
}

type profileResponse struct {
	ID        string    `json:"id"`
	Role      user.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Email     *string   `json:"email"`
	Username  *string   `json:"username"`
	ImageURL  *string   `json:"image_url"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
}

// AccountHandler serves the caller's own views: profile, dashboard and the admin probe.
type AccountHandler struct {
	profiles ProfileSource
	secrets  SecretService
	admin    AdminChecker
	log      logging.Logger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(profiles ProfileSource, secrets SecretService, admin AdminChecker, log logging.Logger) *AccountHandler {
	return &AccountHandler{profiles: profiles, secrets: secrets, admin: admin, log: log}
}

// Profile handles GET /profile
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.CurrentUser(r.Context())
	if !ok {
		writeError(r.Context(), w, h.log, "profile", apperr.ErrUnauthenticated)
		return
	}

	resp := profileResponse{ID: u.ID, Role: u.Role, CreatedAt: u.CreatedAt}

	p, err := h.profiles.GetUser(r.Context(), u.ID)
	switch {
	case err == nil:
		resp.Email = p.Email
		resp.Username = p.Username
		resp.ImageURL = p.ImageURL
		resp.FirstName = p.FirstName
		resp.LastName = p.LastName
	case errors.Is(err, directory.ErrNotFound):
		h.log.Warn(r.Context(), "no provider profile for user", "user_id", u.ID)
	default:
		writeError(r.Context(), w, h.log, "profile", err)
		return
	}

	writeJSON(r.Context(), w, h.log, http.StatusOK, resp)
}

// Dashboard handles GET /dashboard
func (h *AccountHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.CurrentUser(r.Context())
	if !ok {
		writeError(r.Context(), w, h.log, "dashboard", apperr.ErrUnauthenticated)
		return
	}

	hasSecret, err := h.secrets.Exists(r.Context(), u.ID)
	if err != nil {
		writeError(r.Context(), w, h.log, "dashboard", err)
		return
	}

	writeJSON(r.Context(), w, h.log, http.StatusOK, map[string]any{
		"id":         u.ID,
		"role":       u.Role,
		"is_admin":   u.IsAdmin(),
		"has_secret": hasSecret,
	})
}

// CheckAdmin handles GET /api/check-admin. It never fails.
func (h *AccountHandler) CheckAdmin(w http.ResponseWriter, r *http.Request) {
	role := anonymousRole
	if u, ok := middleware.CurrentUser(r.Context()); ok {
		role = string(u.Role)
	}

	writeJSON(r.Context(), w, h.log, http.StatusOK, map[string]any{
		"is_admin": h.admin.CheckAdminStatus(r.Context(), callerID(r)),
		"role":     role,
	})
}
