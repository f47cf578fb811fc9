package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/menjava/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string   `json:"error"`
	Code      string   `json:"code,omitempty"`
	ObjectIDs []string `json:"object_ids,omitempty"`
	Text      string   `json:"text,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, errorBody{Error: message, Code: code})
}

// decodeJSON decodes a JSON request body into target and validates it.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return err
	}
	return validate.Struct(target)
}

// describeError maps a domain error to a status and error body.
// Not-authorized and not-found look the same so outsiders cannot test for
// records.
func describeError(err error) (int, errorBody) {
	var body errorBody
	status := http.StatusInternalServerError

	var mismatch *model.OwnershipMismatchError
	var delivery *model.DeliveryError
	switch {
	case errors.Is(err, model.ErrReconciliationRequired):
		status, body.Code, body.Error = http.StatusInternalServerError, "RECONCILIATION_REQUIRED", "this exchange needs manual reconciliation"
	case errors.As(err, &mismatch):
		status, body.Code, body.Error = http.StatusConflict, "OWNERSHIP_MISMATCH", "an item has changed hands, refresh and try again"
		body.ObjectIDs = mismatch.ObjectIDs
	case errors.Is(err, model.ErrOwnershipMismatch):
		status, body.Code, body.Error = http.StatusConflict, "OWNERSHIP_MISMATCH", "an item has changed hands, refresh and try again"
	case errors.Is(err, model.ErrStaleState):
		status, body.Code, body.Error = http.StatusConflict, "ALREADY_RESOLVED", "this request was already resolved"
	case errors.Is(err, model.ErrNotAuthorized), errors.Is(err, model.ErrNotFound):
		status, body.Code, body.Error = http.StatusNotFound, "NOT_FOUND", "not found"
	case errors.Is(err, model.ErrEmptyOffer):
		status, body.Code, body.Error = http.StatusBadRequest, "EMPTY_OFFER", "a proposal needs at least one item"
	case errors.Is(err, model.ErrInvalidProposal):
		status, body.Code, body.Error = http.StatusBadRequest, "INVALID_PROPOSAL", "invalid proposal"
	case errors.Is(err, model.ErrInvalidMessage):
		status, body.Code, body.Error = http.StatusBadRequest, "INVALID_MESSAGE", "message must be 1 to 4000 characters with an unused id"
	case errors.As(err, &delivery):
		status, body.Code, body.Error = http.StatusServiceUnavailable, "DELIVERY_FAILED", "message not sent, try again"
		body.Text = delivery.Text
	default:
		body.Code, body.Error = "INTERNAL", "internal error"
	}
	return status, body
}

// writeDomainError writes the response for err.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := describeError(err)
	body.RequestID = GetRequestID(r.Context())
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", body.RequestID, "error", err)
	}
	jsonResponse(w, status, body)
}
