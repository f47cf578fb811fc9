package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

// Health reports whether the database answers.
func Health(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := database.PingContext(ctx); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
