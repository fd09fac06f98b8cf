package handler

import (
	"context"
	"net/http"
	"time"

	"secretvault/internal/logging"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// healthHandler reports liveness plus database reachability.
func healthHandler(db HealthChecker, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := db.Health(ctx); err != nil {
				log.Warn(r.Context(), "health check failed", "error", err)
				writeJSON(r.Context(), w, log, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "unreachable"})
				return
			}
		}
		writeJSON(r.Context(), w, log, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
