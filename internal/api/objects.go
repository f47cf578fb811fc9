package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/menjava/internal/imaging"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// ObjectsHandler serves collections and object records.
type ObjectsHandler struct {
	DB *sql.DB
}

// List handles GET /api/objects?owner={id}. Without owner it lists the
// caller's own collection; other collections only show public objects.
func (h *ObjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = claims.UserID
	}

	objects, err := store.ListObjectsByOwner(r.Context(), h.DB, owner, owner != claims.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if objects == nil {
		objects = []model.Object{}
	}
	jsonResponse(w, http.StatusOK, objects)
}

// Create handles POST /api/objects.
func (h *ObjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var attrs model.ObjectAttrs
	if err := decodeJSON(r, &attrs); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid object: "+err.Error())
		return
	}

	claims := GetClaims(r.Context())
	object, err := store.CreateObject(r.Context(), h.DB, claims.UserID, attrs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	slog.Info("object created", "user", claims.Username, "object", object.ID, "name", object.Name)
	jsonResponse(w, http.StatusCreated, object)
}

// Get handles GET /api/objects/{id}.
func (h *ObjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	object, ok := h.visible(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, object)
}

// Update handles PUT /api/objects/{id}. Only the current owner may edit.
func (h *ObjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var attrs model.ObjectAttrs
	if err := decodeJSON(r, &attrs); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid object: "+err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	claims := GetClaims(r.Context())
	ok, err := store.UpdateObjectAttrs(r.Context(), h.DB, id, claims.UserID, attrs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !ok {
		writeDomainError(w, r, model.ErrNotFound)
		return
	}

	object, err := store.GetObject(r.Context(), h.DB, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, object)
}

// UploadImage handles PUT /api/objects/{id}/image (multipart field "image").
func (h *ObjectsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "file too large (max 10 MB)")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Normalize(file, imaging.DefaultOptions)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	claims := GetClaims(r.Context())
	ok, err := store.SetObjectImage(r.Context(), h.DB, id, claims.UserID, photo.Data, photo.MIME)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !ok {
		writeDomainError(w, r, model.ErrNotFound)
		return
	}

	slog.Info("object image uploaded", "user", claims.Username, "object", id, "bytes", len(photo.Data))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/objects/{id}/image.
func (h *ObjectsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	object, ok := h.visible(w, r)
	if !ok {
		return
	}

	data, mime, err := store.GetObjectImage(r.Context(), h.DB, object.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if len(data) == 0 {
		writeDomainError(w, r, model.ErrNotFound)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// GetHistory handles GET /api/objects/{id}/history.
func (h *ObjectsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	object, ok := h.visible(w, r)
	if !ok {
		return
	}

	entries, err := store.GetObjectHistory(r.Context(), h.DB, object.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.ProvenanceEntry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}

// visible loads the object in the URL and writes a not-found response
// unless it exists and is public or owned by the caller.
func (h *ObjectsHandler) visible(w http.ResponseWriter, r *http.Request) (*model.Object, bool) {
	object, err := store.GetObject(r.Context(), h.DB, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return nil, false
	}
	if object == nil || (!object.Public && object.OwnerID != GetClaims(r.Context()).UserID) {
		writeDomainError(w, r, model.ErrNotFound)
		return nil, false
	}
	return object, true
}
