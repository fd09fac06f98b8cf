package handler

import (
	"net/http"

	"secretvault/internal/logging"
)

// Deps holds everything the routes need.
type Deps struct {
	Environment string
	Health      HealthChecker
	Secrets     SecretService
	Admin       AdminService
	Profiles    ProfileSource
	Log         logging.Logger
}

// RegisterRoutes registers all HTTP routes with the provided mux.
// Access control runs before the mux in middleware.Gate; handlers only read
// the caller it attached.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}

	// Health and status endpoints (no auth required)
	mux.HandleFunc("GET /health", healthHandler(deps.Health, log))
	mux.HandleFunc("GET /api/v1/status", statusHandler(deps.Environment, log))

	secrets := NewSecretHandler(deps.Secrets, log)
	mux.HandleFunc("GET /secret", secrets.Get)
	mux.HandleFunc("POST /secret", secrets.Post)
	mux.HandleFunc("/secret", methodNotAllowedHandler("GET, POST", log))

	account := NewAccountHandler(deps.Profiles, deps.Secrets, deps.Admin, log)
	mux.HandleFunc("GET /profile", account.Profile)
	mux.HandleFunc("GET /dashboard", account.Dashboard)
	mux.HandleFunc("GET /api/check-admin", account.CheckAdmin)

	users := NewAdminUsersHandler(deps.Admin, log)
	mux.HandleFunc("GET /admin/users", users.List)
	mux.HandleFunc("DELETE /admin/users/{id}", users.Delete)
	mux.HandleFunc("POST /admin/users/{id}/delete", users.Delete)
}
