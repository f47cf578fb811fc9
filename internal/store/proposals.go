package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/uid"
)

// CreateProposal stores a pending proposal. Inside the same transaction it
// checks that the sender currently owns every sender item; receiver items
// are only checked when the proposal is executed.
func CreateProposal(ctx context.Context, database *sql.DB, senderID, receiverID string, senderItems, receiverItems []string) (*model.Proposal, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	owners, err := Owners(ctx, tx, senderItems)
	if err != nil {
		return nil, err
	}
	mismatched := lo.Filter(senderItems, func(id string, _ int) bool {
		return owners[id] != senderID
	})
	if len(mismatched) > 0 {
		return nil, &model.OwnershipMismatchError{ObjectIDs: mismatched}
	}

	id := uid.New()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO proposals (id, sender_id, receiver_id, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, senderID, receiverID, model.ProposalPending, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating proposal: %w", err)
	}

	if err := insertProposalItems(ctx, tx, id, model.SideSender, senderItems); err != nil {
		return nil, err
	}
	if err := insertProposalItems(ctx, tx, id, model.SideReceiver, receiverItems); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing proposal: %w", err)
	}
	return GetProposal(ctx, database, id)
}

func insertProposalItems(ctx context.Context, tx *sql.Tx, proposalID, side string, ids []string) error {
	for i, objectID := range ids {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO proposal_items (proposal_id, object_id, side, position) VALUES (?, ?, ?, ?)`,
			proposalID, objectID, side, i,
		)
		if err != nil {
			return fmt.Errorf("adding %s item %s: %w", side, objectID, err)
		}
	}
	return nil
}

// GetProposal returns a proposal with its items.
func GetProposal(ctx context.Context, q db.Querier, id string) (*model.Proposal, error) {
	proposals, err := queryProposals(ctx, q,
		`SELECT id, sender_id, receiver_id, status, created_at, resolved_at, flagged_at
		 FROM proposals WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(proposals) == 0 {
		return nil, nil
	}
	return &proposals[0], nil
}

// ListPendingInbound returns pending proposals addressed to userID, newest first.
func ListPendingInbound(ctx context.Context, q db.Querier, userID string) ([]model.Proposal, error) {
	return queryProposals(ctx, q,
		`SELECT id, sender_id, receiver_id, status, created_at, resolved_at, flagged_at
		 FROM proposals WHERE receiver_id = ? AND status = ?
		 ORDER BY created_at DESC`, userID, model.ProposalPending)
}

// ListPendingOutbound returns pending proposals sent by userID, newest first.
func ListPendingOutbound(ctx context.Context, q db.Querier, userID string) ([]model.Proposal, error) {
	return queryProposals(ctx, q,
		`SELECT id, sender_id, receiver_id, status, created_at, resolved_at, flagged_at
		 FROM proposals WHERE sender_id = ? AND status = ?
		 ORDER BY created_at DESC`, userID, model.ProposalPending)
}

// ListProposals returns every proposal userID takes part in, newest first.
func ListProposals(ctx context.Context, q db.Querier, userID string) ([]model.Proposal, error) {
	return queryProposals(ctx, q,
		`SELECT id, sender_id, receiver_id, status, created_at, resolved_at, flagged_at
		 FROM proposals WHERE sender_id = ? OR receiver_id = ?
		 ORDER BY created_at DESC`, userID, userID)
}

// ListFlaggedProposals returns proposals awaiting manual reconciliation.
func ListFlaggedProposals(ctx context.Context, q db.Querier) ([]model.Proposal, error) {
	return queryProposals(ctx, q,
		`SELECT id, sender_id, receiver_id, status, created_at, resolved_at, flagged_at
		 FROM proposals WHERE flagged_at IS NOT NULL
		 ORDER BY flagged_at`)
}

// TransitionProposal moves a pending, unflagged proposal to status. If the
// proposal is no longer in that state the update matches nothing and
// model.ErrStaleState is returned, so of two racing transitions exactly one
// wins.
func TransitionProposal(ctx context.Context, database *sql.DB, id, status string) error {
	res, err := database.ExecContext(ctx,
		`UPDATE proposals SET status = ?, resolved_at = ?
		 WHERE id = ? AND status = ? AND flagged_at IS NULL`,
		status, time.Now().UTC(), id, model.ProposalPending,
	)
	if err != nil {
		return fmt.Errorf("updating proposal: %w", err)
	}
	return requireOneRow(res, model.ErrStaleState)
}

// ExecuteProposal is the atomic exchange procedure: in one transaction it
// marks the proposal accepted (only if still pending and unflagged) and
// moves every item (only if each is still held by the expected party).
// Any failure rolls back everything.
func ExecuteProposal(ctx context.Context, database *sql.DB, p *model.Proposal) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE proposals SET status = ?, resolved_at = ?
		 WHERE id = ? AND status = ? AND flagged_at IS NULL`,
		model.ProposalAccepted, now, p.ID, model.ProposalPending,
	)
	if err != nil {
		return fmt.Errorf("accepting proposal: %w", err)
	}
	if err := requireOneRow(res, model.ErrStaleState); err != nil {
		return err
	}

	senderSide, receiverSide := p.Transfers()
	if err := reassignOwners(ctx, tx, append(senderSide, receiverSide...), now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing exchange: %w", err)
	}
	return nil
}

// FlagProposal freezes a proposal for manual reconciliation and records the
// incident in the same transaction.
func FlagProposal(ctx context.Context, database *sql.DB, proposalID, kind, detail string) (*model.Incident, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE proposals SET flagged_at = ? WHERE id = ? AND flagged_at IS NULL`,
		now, proposalID,
	); err != nil {
		return nil, fmt.Errorf("flagging proposal: %w", err)
	}

	incident := &model.Incident{
		ID:         uid.New(),
		ProposalID: proposalID,
		Kind:       kind,
		Detail:     detail,
		CreatedAt:  now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO incidents (id, proposal_id, kind, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		incident.ID, incident.ProposalID, incident.Kind, incident.Detail, incident.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("recording incident: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing incident: %w", err)
	}
	return incident, nil
}

func queryProposals(ctx context.Context, q db.Querier, query string, args ...any) ([]model.Proposal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}

	var proposals []model.Proposal
	for rows.Next() {
		var p model.Proposal
		if err := rows.Scan(&p.ID, &p.SenderID, &p.ReceiverID, &p.Status, &p.CreatedAt, &p.ResolvedAt, &p.FlaggedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning proposal: %w", err)
		}
		p.SenderItems = []string{}
		p.ReceiverItems = []string{}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing proposals: %w", err)
	}
	// Close before loading items: the pool holds a single connection.
	rows.Close()

	for i := range proposals {
		if err := loadProposalItems(ctx, q, &proposals[i]); err != nil {
			return nil, err
		}
	}
	return proposals, nil
}

func loadProposalItems(ctx context.Context, q db.Querier, p *model.Proposal) error {
	rows, err := q.QueryContext(ctx,
		`SELECT object_id, side FROM proposal_items WHERE proposal_id = ? ORDER BY side, position`, p.ID,
	)
	if err != nil {
		return fmt.Errorf("loading proposal items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var objectID, side string
		if err := rows.Scan(&objectID, &side); err != nil {
			return fmt.Errorf("scanning proposal item: %w", err)
		}
		if side == model.SideSender {
			p.SenderItems = append(p.SenderItems, objectID)
		} else {
			p.ReceiverItems = append(p.ReceiverItems, objectID)
		}
	}
	return rows.Err()
}

func requireOneRow(res sql.Result, otherwise error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n != 1 {
		return otherwise
	}
	return nil
}
