package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/menjava/internal/exchange"
	"github.com/erazemk/menjava/internal/inbox"
	"github.com/erazemk/menjava/internal/model"
)

// ProposalsHandler serves the exchange protocol.
type ProposalsHandler struct {
	Ledger *exchange.Ledger
	Inbox  *inbox.Aggregator
}

type createProposalRequest struct {
	ReceiverID    string   `json:"receiver_id" validate:"required"`
	SenderItems   []string `json:"sender_items" validate:"omitempty,dive,required"`
	ReceiverItems []string `json:"receiver_items" validate:"omitempty,dive,required"`
}

// List handles GET /api/proposals.
func (h *ProposalsHandler) List(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.Ledger.List(r.Context(), GetClaims(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if proposals == nil {
		proposals = []model.Proposal{}
	}
	jsonResponse(w, http.StatusOK, proposals)
}

// Create handles POST /api/proposals.
func (h *ProposalsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "receiver_id required")
		return
	}

	claims := GetClaims(r.Context())
	p, err := h.Ledger.Propose(r.Context(), claims.UserID, req.ReceiverID, req.SenderItems, req.ReceiverItems)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	slog.Info("proposal created", "user", claims.Username, "proposal", p.ID, "receiver", p.ReceiverID)
	jsonResponse(w, http.StatusCreated, p)
}

// Inspect handles GET /api/proposals/{id}.
func (h *ProposalsHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	view, err := h.Inbox.Inspect(r.Context(), chi.URLParam(r, "id"), GetClaims(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, view)
}

// Accept handles POST /api/proposals/{id}/accept.
func (h *ProposalsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "accepted", h.Ledger.Accept)
}

// Decline handles POST /api/proposals/{id}/decline.
func (h *ProposalsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "declined", h.Ledger.Decline)
}

// Cancel handles POST /api/proposals/{id}/cancel.
func (h *ProposalsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "cancelled", h.Ledger.Cancel)
}

func (h *ProposalsHandler) resolve(w http.ResponseWriter, r *http.Request, verb string,
	op func(ctx context.Context, proposalID, actorID string) (*model.Proposal, error)) {
	claims := GetClaims(r.Context())
	p, err := op(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	slog.Info("proposal "+verb, "user", claims.Username, "proposal", p.ID)
	jsonResponse(w, http.StatusOK, p)
}
