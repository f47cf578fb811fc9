// Package inbox builds the read-only notification views: what is waiting on
// a user, and a resolved view of one proposal.
package inbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// Snapshot is everything pending for one user, read at a single point in time.
type Snapshot struct {
	Inbound  []model.Proposal `json:"inbound"`
	Outbound []model.Proposal `json:"outbound"`
	Links    []model.Link     `json:"links"`
}

// Item is one side of an inspected proposal, resolved to the object record.
// Held is false when the object no longer belongs to the party offering it
// (or no longer exists), meaning acceptance would fail.
type Item struct {
	ObjectID string        `json:"object_id"`
	Object   *model.Object `json:"object,omitempty"`
	Held     bool          `json:"held"`
}

// Inspection is a proposal with both item lists resolved.
type Inspection struct {
	Proposal      *model.Proposal `json:"proposal"`
	SenderItems   []Item          `json:"sender_items"`
	ReceiverItems []Item          `json:"receiver_items"`
}

// Aggregator reads the inbox views.
type Aggregator struct {
	DB *sql.DB
}

// Snapshot returns the user's inbound and outbound pending proposals and
// inbound pending link requests from one read transaction.
func (a *Aggregator) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	tx, err := a.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning snapshot: %w", err)
	}
	defer tx.Rollback()

	s := &Snapshot{}
	if s.Inbound, err = store.ListPendingInbound(ctx, tx, userID); err != nil {
		return nil, err
	}
	if s.Outbound, err = store.ListPendingOutbound(ctx, tx, userID); err != nil {
		return nil, err
	}
	if s.Links, err = store.ListPendingLinks(ctx, tx, userID); err != nil {
		return nil, err
	}
	return s, nil
}

// Inspect resolves a proposal's items for viewerID. Only the two
// participants may inspect; anyone else gets model.ErrNotFound.
func (a *Aggregator) Inspect(ctx context.Context, proposalID, viewerID string) (*Inspection, error) {
	tx, err := a.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning inspection: %w", err)
	}
	defer tx.Rollback()

	p, err := store.GetProposal(ctx, tx, proposalID)
	if err != nil {
		return nil, err
	}
	if p == nil || (viewerID != p.SenderID && viewerID != p.ReceiverID) {
		return nil, model.ErrNotFound
	}

	objects, err := store.GetObjects(ctx, tx, append(append([]string{}, p.SenderItems...), p.ReceiverItems...))
	if err != nil {
		return nil, err
	}

	resolve := func(ids []string, holder string) []Item {
		items := make([]Item, 0, len(ids))
		for _, id := range ids {
			item := Item{ObjectID: id}
			if o, ok := objects[id]; ok {
				item.Object = &o
				item.Held = o.OwnerID == holder
			}
			items = append(items, item)
		}
		return items
	}

	return &Inspection{
		Proposal:      p,
		SenderItems:   resolve(p.SenderItems, p.SenderID),
		ReceiverItems: resolve(p.ReceiverItems, p.ReceiverID),
	}, nil
}
