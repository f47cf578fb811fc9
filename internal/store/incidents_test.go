package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
)

func TestResolveFlaggedProposal(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	a := mustObject(t, database, alice.ID, "A")

	p, _ := CreateProposal(ctx, database, alice.ID, bob.ID, []string{a.ID}, nil)

	if err := ResolveFlaggedProposal(ctx, database, p.ID, model.ProposalAccepted, "fixed"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("resolving an unflagged proposal should fail, got %v", err)
	}

	if _, err := FlagProposal(ctx, database, p.ID, model.IncidentPartialTransfer, "half done"); err != nil {
		t.Fatalf("FlagProposal: %v", err)
	}
	open, err := ListIncidents(ctx, database, true)
	if err != nil {
		t.Fatalf("ListIncidents: %v", err)
	}
	if len(open) != 1 || open[0].ProposalID != p.ID {
		t.Fatalf("expected one open incident, got %+v", open)
	}

	if err := ResolveFlaggedProposal(ctx, database, p.ID, model.ProposalPending, ""); err == nil {
		t.Error("pending is not a valid resolution")
	}
	if err := ResolveFlaggedProposal(ctx, database, p.ID, model.ProposalCancelled, "restored by hand"); err != nil {
		t.Fatalf("ResolveFlaggedProposal: %v", err)
	}

	open, _ = ListIncidents(ctx, database, true)
	if len(open) != 0 {
		t.Errorf("expected no open incidents, got %d", len(open))
	}
	all, _ := ListIncidents(ctx, database, false)
	if len(all) != 1 || all[0].ResolvedAt == nil || all[0].Resolution == "" {
		t.Errorf("expected resolved incident, got %+v", all)
	}
	got, _ := GetProposal(ctx, database, p.ID)
	if got.Status != model.ProposalCancelled || got.FlaggedAt != nil {
		t.Errorf("expected cancelled and unflagged, got %+v", got)
	}
}
