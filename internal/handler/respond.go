package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"secretvault/internal/apperr"
	"secretvault/internal/auth"
	"secretvault/internal/logging"
	"secretvault/internal/middleware"
)

// writeJSON writes a JSON response with the given status code.
// The status line is already sent when encoding fails, so the failure is only logged.
func writeJSON(ctx context.Context, w http.ResponseWriter, log logging.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

// errorStatus maps an error class to its HTTP status and public message.
// Server-side faults get a generic message; the detail goes to the log.
func errorStatus(err error) (status int, kind, message string) {
	kind = apperr.Kind(err)
	switch kind {
	case "unauthenticated":
		return http.StatusUnauthorized, "authentication_error", "unauthorized"
	case "forbidden":
		return http.StatusForbidden, "access_denied", err.Error()
	case "invalid_operation":
		return http.StatusBadRequest, kind, err.Error()
	case "upstream_error":
		return http.StatusBadGateway, kind, "identity provider unavailable"
	case "storage_error", "crypto_error":
		return http.StatusInternalServerError, kind, "internal error"
	default:
		return http.StatusInternalServerError, "server_error", "internal error"
	}
}

// writeError writes the {"error":{...}} body for err and logs server-side faults.
func writeError(ctx context.Context, w http.ResponseWriter, log logging.Logger, op string, err error) {
	status, kind, message := errorStatus(err)
	logError(ctx, log, op, status, err)
	if err := auth.WriteJSONError(w, status, message, kind); err != nil {
		log.Warn(ctx, "failed to write error response", "error", err)
	}
}

func logError(ctx context.Context, log logging.Logger, op string, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Error(ctx, op+" failed", "error", err)
		return
	}
	log.Debug(ctx, op+" rejected", "error", err)
}

// callerID returns the provisioned caller's ID, or "" for anonymous requests.
func callerID(r *http.Request) string {
	if u, ok := middleware.CurrentUser(r.Context()); ok {
		return u.ID
	}
	return ""
}

func methodNotAllowedHandler(allowedMethods string, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allowedMethods)
		if err := auth.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_request_error"); err != nil {
			log.Warn(r.Context(), "failed to write error response", "error", err)
		}
	}
}
