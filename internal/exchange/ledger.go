// Package exchange implements the proposal lifecycle and the execution of
// accepted swaps.
package exchange

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/samber/lo"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// Ledger owns the proposal state machine. Proposals start pending and end
// accepted, declined or cancelled; terminal proposals never move again.
type Ledger struct {
	DB         *sql.DB
	Transfer   Transferrer
	Provenance *Recorder
	Log        *slog.Logger
}

// NewLedger wires a ledger with the given transfer strategy.
func NewLedger(database *sql.DB, transfer Transferrer, log *slog.Logger) *Ledger {
	return &Ledger{
		DB:         database,
		Transfer:   transfer,
		Provenance: &Recorder{DB: database, Log: log},
		Log:        log,
	}
}

// Propose creates a pending proposal offering senderItems for receiverItems.
func (l *Ledger) Propose(ctx context.Context, senderID, receiverID string, senderItems, receiverItems []string) (*model.Proposal, error) {
	senderItems = lo.Uniq(senderItems)
	receiverItems = lo.Uniq(receiverItems)

	if len(senderItems) == 0 && len(receiverItems) == 0 {
		return nil, model.ErrEmptyOffer
	}
	if senderID == receiverID {
		return nil, model.ErrInvalidProposal
	}
	if len(lo.Intersect(senderItems, receiverItems)) > 0 {
		return nil, model.ErrInvalidProposal
	}

	receiver, err := store.GetUser(ctx, l.DB, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil || receiver.DeletedAt != nil {
		return nil, model.ErrNotFound
	}

	p, err := store.CreateProposal(ctx, l.DB, senderID, receiverID, senderItems, receiverItems)
	if err != nil {
		return nil, err
	}
	l.Log.Info("proposal created", "proposal", p.ID, "sender", senderID, "receiver", receiverID,
		"sender_items", len(senderItems), "receiver_items", len(receiverItems))
	return p, nil
}

// Cancel withdraws a pending proposal. Only the sender may cancel.
func (l *Ledger) Cancel(ctx context.Context, proposalID, requesterID string) (*model.Proposal, error) {
	return l.transition(ctx, proposalID, requesterID, model.SideSender, model.ProposalCancelled)
}

// Decline rejects a pending proposal. Only the receiver may decline.
func (l *Ledger) Decline(ctx context.Context, proposalID, responderID string) (*model.Proposal, error) {
	return l.transition(ctx, proposalID, responderID, model.SideReceiver, model.ProposalDeclined)
}

// Accept executes a pending proposal. Only the receiver may accept. On
// failure the proposal stays pending and can be retried, except after a
// partial transfer, which freezes it for reconciliation.
func (l *Ledger) Accept(ctx context.Context, proposalID, responderID string) (*model.Proposal, error) {
	p, err := l.load(ctx, proposalID, responderID, model.SideReceiver)
	if err != nil {
		return nil, err
	}

	if err := l.Transfer.Execute(ctx, p); err != nil {
		var partial *model.PartialTransferError
		if errors.As(err, &partial) {
			l.flag(ctx, partial)
			return nil, err
		}
		return nil, l.explainStale(ctx, proposalID, err)
	}

	n := l.Provenance.RecordExchange(ctx, p)
	l.Log.Info("proposal accepted", "proposal", p.ID, "provenance_entries", n)

	return l.reload(ctx, proposalID)
}

// List returns every proposal userID takes part in, newest first.
func (l *Ledger) List(ctx context.Context, userID string) ([]model.Proposal, error) {
	return store.ListProposals(ctx, l.DB, userID)
}

func (l *Ledger) transition(ctx context.Context, proposalID, actorID, side, status string) (*model.Proposal, error) {
	if _, err := l.load(ctx, proposalID, actorID, side); err != nil {
		return nil, err
	}
	if err := store.TransitionProposal(ctx, l.DB, proposalID, status); err != nil {
		return nil, l.explainStale(ctx, proposalID, err)
	}
	l.Log.Info("proposal "+status, "proposal", proposalID, "by", actorID)
	return l.reload(ctx, proposalID)
}

// load fetches a proposal for actorID acting as side. Authorization is
// checked before state so outsiders learn nothing about the proposal.
func (l *Ledger) load(ctx context.Context, proposalID, actorID, side string) (*model.Proposal, error) {
	p, err := store.GetProposal(ctx, l.DB, proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.ErrNotFound
	}

	allowed := p.SenderID
	if side == model.SideReceiver {
		allowed = p.ReceiverID
	}
	if actorID != allowed {
		return nil, model.ErrNotAuthorized
	}

	if p.FlaggedAt != nil {
		return nil, model.ErrReconciliationRequired
	}
	if p.IsTerminal() {
		return nil, model.ErrStaleState
	}
	return p, nil
}

// explainStale turns a lost race into the right error: a proposal flagged
// in the meantime needs reconciliation rather than being "already resolved".
func (l *Ledger) explainStale(ctx context.Context, proposalID string, err error) error {
	if !errors.Is(err, model.ErrStaleState) {
		return err
	}
	p, getErr := store.GetProposal(ctx, l.DB, proposalID)
	if getErr == nil && p != nil && p.FlaggedAt != nil {
		return model.ErrReconciliationRequired
	}
	return err
}

func (l *Ledger) flag(ctx context.Context, partial *model.PartialTransferError) {
	l.Log.Error("partial transfer, proposal needs manual reconciliation",
		"proposal", partial.ProposalID, "moved", partial.Moved, "error", partial.Err)

	// The request context may already be cancelled; the incident must still be written.
	incident, err := store.FlagProposal(context.WithoutCancel(ctx), l.DB, partial.ProposalID,
		model.IncidentPartialTransfer, partial.Error())
	if err != nil {
		l.Log.Error("recording incident", "proposal", partial.ProposalID, "error", err)
		return
	}
	l.Log.Error("incident recorded", "incident", incident.ID, "proposal", partial.ProposalID)
}

func (l *Ledger) reload(ctx context.Context, proposalID string) (*model.Proposal, error) {
	p, err := store.GetProposal(ctx, l.DB, proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.ErrNotFound
	}
	return p, nil
}
