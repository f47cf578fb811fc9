package exchange

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// Transfer modes accepted by NewTransferrer.
const (
	ModeAtomic   = "atomic"
	ModeTwoPhase = "two-phase"
)

// Transferrer executes an accepted proposal: both sides move and the
// proposal is marked accepted, or the error says why not.
type Transferrer interface {
	Execute(ctx context.Context, p *model.Proposal) error
}

// NewTransferrer returns the strategy for mode.
func NewTransferrer(mode string, database *sql.DB, log *slog.Logger) (Transferrer, error) {
	switch mode {
	case ModeAtomic, "":
		return &AtomicBackendTransfer{DB: database}, nil
	case ModeTwoPhase:
		return &TwoPhaseClientTransfer{DB: database, Owners: &SQLOwnership{DB: database}, Log: log}, nil
	default:
		return nil, fmt.Errorf("unknown transfer mode %q", mode)
	}
}

// AtomicBackendTransfer runs the whole exchange in one database transaction.
type AtomicBackendTransfer struct {
	DB *sql.DB
}

func (t *AtomicBackendTransfer) Execute(ctx context.Context, p *model.Proposal) error {
	return store.ExecuteProposal(ctx, t.DB, p)
}

// OwnershipStore is the part of the object store the two-phase strategy
// drives directly.
type OwnershipStore interface {
	Owners(ctx context.Context, ids []string) (map[string]string, error)
	TransferAtomic(ctx context.Context, transfers []model.Transfer) error
}

// SQLOwnership is the OwnershipStore backed by the objects table.
type SQLOwnership struct {
	DB *sql.DB
}

func (s *SQLOwnership) Owners(ctx context.Context, ids []string) (map[string]string, error) {
	return store.Owners(ctx, s.DB, ids)
}

func (s *SQLOwnership) TransferAtomic(ctx context.Context, transfers []model.Transfer) error {
	return store.TransferAtomic(ctx, s.DB, transfers)
}

// TwoPhaseClientTransfer moves the sender side, verifies it, then moves the
// receiver side and marks the proposal accepted, each step committing on
// its own. It is a degraded mode: a failure after the first commit leaves
// the exchange half applied and is reported as *model.PartialTransferError.
type TwoPhaseClientTransfer struct {
	DB     *sql.DB
	Owners OwnershipStore
	Log    *slog.Logger
}

func (t *TwoPhaseClientTransfer) Execute(ctx context.Context, p *model.Proposal) error {
	t.Log.Warn("reliability anomaly: executing exchange without an atomic transaction",
		"proposal", p.ID, "sender", p.SenderID, "receiver", p.ReceiverID)

	current, err := store.GetProposal(ctx, t.DB, p.ID)
	if err != nil {
		return err
	}
	switch {
	case current == nil:
		return model.ErrNotFound
	case current.FlaggedAt != nil:
		return model.ErrReconciliationRequired
	case current.Status != model.ProposalPending:
		return model.ErrStaleState
	}

	senderSide, receiverSide := current.Transfers()

	// Nothing moves unless both sides still hold their items.
	if err := t.verify(ctx, append(senderSide, receiverSide...), func(tr model.Transfer) string { return tr.FromOwnerID }); err != nil {
		return err
	}

	if err := t.Owners.TransferAtomic(ctx, senderSide); err != nil {
		return err
	}
	moved := lo.Map(senderSide, func(tr model.Transfer, _ int) string { return tr.ObjectID })

	partial := func(err error) error {
		if len(moved) == 0 {
			return err
		}
		return &model.PartialTransferError{ProposalID: p.ID, Moved: moved, Err: err}
	}

	if err := t.verify(ctx, senderSide, func(tr model.Transfer) string { return tr.ToOwnerID }); err != nil {
		return partial(err)
	}

	if err := t.Owners.TransferAtomic(ctx, receiverSide); err != nil {
		return partial(err)
	}
	moved = append(moved, lo.Map(receiverSide, func(tr model.Transfer, _ int) string { return tr.ObjectID })...)

	if err := store.TransitionProposal(ctx, t.DB, p.ID, model.ProposalAccepted); err != nil {
		return partial(fmt.Errorf("marking proposal accepted: %w", err))
	}
	return nil
}

// verify checks that every transfer's object is currently held by the owner
// picked by expected.
func (t *TwoPhaseClientTransfer) verify(ctx context.Context, transfers []model.Transfer, expected func(model.Transfer) string) error {
	if len(transfers) == 0 {
		return nil
	}
	ids := lo.Map(transfers, func(tr model.Transfer, _ int) string { return tr.ObjectID })
	owners, err := t.Owners.Owners(ctx, ids)
	if err != nil {
		return err
	}
	mismatched := lo.FilterMap(transfers, func(tr model.Transfer, _ int) (string, bool) {
		return tr.ObjectID, owners[tr.ObjectID] != expected(tr)
	})
	if len(mismatched) > 0 {
		return &model.OwnershipMismatchError{ObjectIDs: mismatched}
	}
	return nil
}
