package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
)

func TestCreateProposalChecksSenderOwnership(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	a := mustObject(t, database, alice.ID, "A")
	b := mustObject(t, database, bob.ID, "B")

	_, err := CreateProposal(ctx, database, alice.ID, bob.ID, []string{b.ID}, nil)
	if !errors.Is(err, model.ErrOwnershipMismatch) {
		t.Fatalf("expected ownership mismatch, got %v", err)
	}

	p, err := CreateProposal(ctx, database, alice.ID, bob.ID, []string{a.ID}, []string{b.ID})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if p.Status != model.ProposalPending {
		t.Errorf("expected pending, got %s", p.Status)
	}
	if len(p.SenderItems) != 1 || p.SenderItems[0] != a.ID || len(p.ReceiverItems) != 1 || p.ReceiverItems[0] != b.ID {
		t.Errorf("unexpected items: %v / %v", p.SenderItems, p.ReceiverItems)
	}
}

func TestTransitionProposalOnlyOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	a := mustObject(t, database, alice.ID, "A")

	p, err := CreateProposal(ctx, database, alice.ID, bob.ID, []string{a.ID}, nil)
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	if err := TransitionProposal(ctx, database, p.ID, model.ProposalDeclined); err != nil {
		t.Fatalf("TransitionProposal: %v", err)
	}
	if err := TransitionProposal(ctx, database, p.ID, model.ProposalCancelled); !errors.Is(err, model.ErrStaleState) {
		t.Errorf("expected ErrStaleState on second transition, got %v", err)
	}

	got, _ := GetProposal(ctx, database, p.ID)
	if got.Status != model.ProposalDeclined || got.ResolvedAt == nil {
		t.Errorf("expected declined with resolved_at, got %+v", got)
	}
}

func TestExecuteProposalSwapsBothSides(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	a := mustObject(t, database, alice.ID, "A")
	b := mustObject(t, database, bob.ID, "B")

	p, err := CreateProposal(ctx, database, alice.ID, bob.ID, []string{a.ID}, []string{b.ID})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if err := ExecuteProposal(ctx, database, p); err != nil {
		t.Fatalf("ExecuteProposal: %v", err)
	}

	owners, _ := Owners(ctx, database, []string{a.ID, b.ID})
	if owners[a.ID] != bob.ID || owners[b.ID] != alice.ID {
		t.Errorf("swap not applied: %v", owners)
	}
	got, _ := GetProposal(ctx, database, p.ID)
	if got.Status != model.ProposalAccepted {
		t.Errorf("expected accepted, got %s", got.Status)
	}

	if err := ExecuteProposal(ctx, database, p); !errors.Is(err, model.ErrStaleState) {
		t.Errorf("expected ErrStaleState on re-execution, got %v", err)
	}
}

func TestExecuteProposalRollsBackOnMismatch(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	carol := mustUser(t, database, "carol")
	a := mustObject(t, database, alice.ID, "A")
	b := mustObject(t, database, bob.ID, "B")

	p, err := CreateProposal(ctx, database, alice.ID, bob.ID, []string{a.ID}, []string{b.ID})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	// Bob gives B away before accepting.
	if err := TransferAtomic(ctx, database, []model.Transfer{{ObjectID: b.ID, FromOwnerID: bob.ID, ToOwnerID: carol.ID}}); err != nil {
		t.Fatalf("TransferAtomic: %v", err)
	}

	if err := ExecuteProposal(ctx, database, p); !errors.Is(err, model.ErrOwnershipMismatch) {
		t.Fatalf("expected ownership mismatch, got %v", err)
	}

	owners, _ := Owners(ctx, database, []string{a.ID, b.ID})
	if owners[a.ID] != alice.ID || owners[b.ID] != carol.ID {
		t.Errorf("partial write after rollback: %v", owners)
	}
	got, _ := GetProposal(ctx, database, p.ID)
	if got.Status != model.ProposalPending {
		t.Errorf("expected proposal to stay pending, got %s", got.Status)
	}
}

func TestFlaggedProposalIsFrozen(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	a := mustObject(t, database, alice.ID, "A")

	p, err := CreateProposal(ctx, database, alice.ID, bob.ID, []string{a.ID}, nil)
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if _, err := FlagProposal(ctx, database, p.ID, model.IncidentPartialTransfer, "sender side moved"); err != nil {
		t.Fatalf("FlagProposal: %v", err)
	}

	if err := TransitionProposal(ctx, database, p.ID, model.ProposalCancelled); !errors.Is(err, model.ErrStaleState) {
		t.Errorf("flagged proposal should refuse transitions, got %v", err)
	}

	flagged, err := ListFlaggedProposals(ctx, database)
	if err != nil {
		t.Fatalf("ListFlaggedProposals: %v", err)
	}
	if len(flagged) != 1 || flagged[0].ID != p.ID {
		t.Errorf("expected flagged proposal, got %+v", flagged)
	}
}

func TestListPendingInboundOutbound(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	a1 := mustObject(t, database, alice.ID, "A1")
	a2 := mustObject(t, database, alice.ID, "A2")

	p1, _ := CreateProposal(ctx, database, alice.ID, bob.ID, []string{a1.ID}, nil)
	if _, err := CreateProposal(ctx, database, alice.ID, bob.ID, []string{a2.ID}, nil); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if err := TransitionProposal(ctx, database, p1.ID, model.ProposalCancelled); err != nil {
		t.Fatalf("TransitionProposal: %v", err)
	}

	inbound, err := ListPendingInbound(ctx, database, bob.ID)
	if err != nil {
		t.Fatalf("ListPendingInbound: %v", err)
	}
	if len(inbound) != 1 {
		t.Errorf("expected 1 pending inbound, got %d", len(inbound))
	}
	outbound, _ := ListPendingOutbound(ctx, database, alice.ID)
	if len(outbound) != 1 {
		t.Errorf("expected 1 pending outbound, got %d", len(outbound))
	}
	all, _ := ListProposals(ctx, database, bob.ID)
	if len(all) != 2 {
		t.Errorf("expected 2 proposals overall, got %d", len(all))
	}
}
