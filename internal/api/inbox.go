package api

import (
	"net/http"

	"github.com/erazemk/menjava/internal/inbox"
)

// InboxHandler serves the notification snapshot.
type InboxHandler struct {
	Inbox *inbox.Aggregator
}

// Get handles GET /api/inbox.
func (h *InboxHandler) Get(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Inbox.Snapshot(r.Context(), GetClaims(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, snapshot)
}
