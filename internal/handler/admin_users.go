package handler

import (
	"context"
	"net/http"

	"secretvault/internal/admin"
	"secretvault/internal/logging"
)

// AdminService runs the administrator operations.
type AdminService interface {
	ListUsers(ctx context.Context, callerID string) ([]admin.UserRecord, error)
	DeleteUser(ctx context.Context, callerID, targetID string) error
	CheckAdminStatus(ctx context.Context, callerID string) bool
}

// AdminUsersHandler handles admin operations for users.
type AdminUsersHandler struct {
	admin AdminService
	log   logging.Logger
}

// NewAdminUsersHandler creates a new admin users handler.
func NewAdminUsersHandler(svc AdminService, log logging.Logger) *AdminUsersHandler {
	return &AdminUsersHandler{admin: svc, log: log}
}

// List handles GET /admin/users
func (h *AdminUsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context(), callerID(r))
	if err != nil {
		writeError(r.Context(), w, h.log, "list users", err)
		return
	}

	writeJSON(r.Context(), w, h.log, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// Delete handles DELETE /admin/users/{id} and POST /admin/users/{id}/delete
func (h *AdminUsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteUser(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		writeError(r.Context(), w, h.log, "delete user", err)
		return
	}

	writeJSON(r.Context(), w, h.log, http.StatusOK, map[string]any{"success": true})
}
