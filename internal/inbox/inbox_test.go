package inbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

func TestSnapshot(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	r := require.New(t)

	alice, err := store.CreateUser(ctx, database, "alice", "hash")
	r.NoError(err)
	bob, err := store.CreateUser(ctx, database, "bob", "hash")
	r.NoError(err)

	lamp, err := store.CreateObject(ctx, database, alice.ID, model.ObjectAttrs{Name: "Lamp"})
	r.NoError(err)
	chair, err := store.CreateObject(ctx, database, bob.ID, model.ObjectAttrs{Name: "Chair"})
	r.NoError(err)

	_, err = store.CreateProposal(ctx, database, alice.ID, bob.ID, []string{lamp.ID}, nil)
	r.NoError(err)
	declined, err := store.CreateProposal(ctx, database, bob.ID, alice.ID, []string{chair.ID}, nil)
	r.NoError(err)
	r.NoError(store.TransitionProposal(ctx, database, declined.ID, model.ProposalDeclined))
	_, err = store.CreateLink(ctx, database, alice.ID, bob.ID)
	r.NoError(err)

	agg := &Aggregator{DB: database}

	bobView, err := agg.Snapshot(ctx, bob.ID)
	r.NoError(err)
	r.Len(bobView.Inbound, 1)
	r.Empty(bobView.Outbound)
	r.Len(bobView.Links, 1)

	aliceView, err := agg.Snapshot(ctx, alice.ID)
	r.NoError(err)
	r.Empty(aliceView.Inbound, "declined proposals are not pending")
	r.Len(aliceView.Outbound, 1)
	r.Empty(aliceView.Links)
}

func TestInspect(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	r := require.New(t)

	alice, _ := store.CreateUser(ctx, database, "alice", "hash")
	bob, _ := store.CreateUser(ctx, database, "bob", "hash")
	carol, _ := store.CreateUser(ctx, database, "carol", "hash")

	shoe, err := store.CreateObject(ctx, database, alice.ID, model.ObjectAttrs{Name: "Shoe"})
	r.NoError(err)
	jacket, err := store.CreateObject(ctx, database, bob.ID, model.ObjectAttrs{Name: "Jacket"})
	r.NoError(err)

	p, err := store.CreateProposal(ctx, database, alice.ID, bob.ID, []string{shoe.ID}, []string{jacket.ID})
	r.NoError(err)

	// Bob gives the jacket away; the proposal now cannot succeed.
	r.NoError(store.TransferAtomic(ctx, database, []model.Transfer{{ObjectID: jacket.ID, FromOwnerID: bob.ID, ToOwnerID: carol.ID}}))

	agg := &Aggregator{DB: database}
	view, err := agg.Inspect(ctx, p.ID, bob.ID)
	r.NoError(err)
	r.Len(view.SenderItems, 1)
	r.True(view.SenderItems[0].Held)
	r.Equal("Shoe", view.SenderItems[0].Object.Name)
	r.Len(view.ReceiverItems, 1)
	r.False(view.ReceiverItems[0].Held)

	_, err = agg.Inspect(ctx, p.ID, carol.ID)
	r.ErrorIs(err, model.ErrNotFound)
	_, err = agg.Inspect(ctx, "missing", alice.ID)
	r.ErrorIs(err, model.ErrNotFound)
}
