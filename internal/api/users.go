package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// UsersHandler serves profiles.
type UsersHandler struct {
	DB *sql.DB
}

type updateProfileRequest struct {
	Bio string `json:"bio" validate:"max=500"`
}

// Get handles GET /api/users/{id}. Deleted users are not found.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := store.GetUser(r.Context(), h.DB, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if user == nil || user.DeletedAt != nil {
		writeDomainError(w, r, model.ErrNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Me handles GET /api/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := store.GetUser(r.Context(), h.DB, GetClaims(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if user == nil || user.DeletedAt != nil {
		writeDomainError(w, r, model.ErrNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// UpdateMe handles PUT /api/me.
func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "bio must be at most 500 characters")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.UpdateUserBio(r.Context(), h.DB, claims.UserID, req.Bio); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.Me(w, r)
}

// DeleteMe handles DELETE /api/me. The account is soft-deleted so its
// provenance and messages keep resolving, and the current token is revoked.
func (h *UsersHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if err := store.DeleteUser(r.Context(), h.DB, claims.UserID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		writeDomainError(w, r, err)
		return
	}
	slog.Info("user deleted own account", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
