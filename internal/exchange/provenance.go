package exchange

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// Recorder appends provenance entries for completed exchanges. Writes are
// best effort: ownership is already committed when it runs, so failures are
// logged and never undo the exchange.
type Recorder struct {
	DB  *sql.DB
	Log *slog.Logger
}

// RecordExchange writes one trade entry per object moved by p and returns
// how many entries were written.
func (r *Recorder) RecordExchange(ctx context.Context, p *model.Proposal) int {
	senderSide, receiverSide := p.Transfers()

	written := 0
	for _, t := range append(senderSide, receiverSide...) {
		from := t.FromOwnerID
		_, err := store.AppendProvenance(ctx, r.DB, model.ProvenanceEntry{
			ObjectID:    t.ObjectID,
			FromOwnerID: &from,
			ToOwnerID:   t.ToOwnerID,
			Kind:        model.ProvenanceTrade,
			ProposalID:  p.ID,
		})
		if err != nil {
			r.Log.Error("recording provenance", "proposal", p.ID, "object", t.ObjectID, "error", err)
			continue
		}
		written++
	}
	return written
}
