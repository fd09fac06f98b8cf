package handler

import (
	"net/http"

	"secretvault/internal/logging"
)

// Version is stamped at build time with -ldflags.
var Version = "0.1.0"

func statusHandler(environment string, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, log, http.StatusOK, map[string]any{
			"service":     "secretvault",
			"version":     Version,
			"environment": environment,
			"status":      "operational",
		})
	}
}
