package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// LinksHandler serves connection requests between users.
type LinksHandler struct {
	DB *sql.DB
}

type createLinkRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
}

// Create handles POST /api/links.
func (h *LinksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "receiver_id required")
		return
	}

	claims := GetClaims(r.Context())
	if req.ReceiverID == claims.UserID {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "cannot link with yourself")
		return
	}
	receiver, err := store.GetUser(r.Context(), h.DB, req.ReceiverID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if receiver == nil || receiver.DeletedAt != nil {
		writeDomainError(w, r, model.ErrNotFound)
		return
	}

	link, err := store.CreateLink(r.Context(), h.DB, claims.UserID, req.ReceiverID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, link)
}

// Accept handles POST /api/links/{id}/accept.
func (h *LinksHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, model.LinkAccepted)
}

// Reject handles POST /api/links/{id}/reject.
func (h *LinksHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, model.LinkRejected)
}

func (h *LinksHandler) respond(w http.ResponseWriter, r *http.Request, status string) {
	id := chi.URLParam(r, "id")
	claims := GetClaims(r.Context())

	link, err := store.GetLink(r.Context(), h.DB, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if link == nil || link.ReceiverID != claims.UserID {
		writeDomainError(w, r, model.ErrNotFound)
		return
	}

	if err := store.RespondLink(r.Context(), h.DB, id, claims.UserID, status); err != nil {
		writeDomainError(w, r, err)
		return
	}
	link.Status = status
	jsonResponse(w, http.StatusOK, link)
}
