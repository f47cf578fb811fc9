package model

import "testing"

func TestProposalTransfers(t *testing.T) {
	p := &Proposal{
		SenderID:      "alice",
		ReceiverID:    "bob",
		SenderItems:   []string{"shoe-1", "hat-3"},
		ReceiverItems: []string{"jacket-2"},
		Status:        ProposalPending,
	}

	senderSide, receiverSide := p.Transfers()
	if len(senderSide) != 2 || len(receiverSide) != 1 {
		t.Fatalf("expected 2+1 transfers, got %d+%d", len(senderSide), len(receiverSide))
	}
	if senderSide[0] != (Transfer{ObjectID: "shoe-1", FromOwnerID: "alice", ToOwnerID: "bob"}) {
		t.Errorf("unexpected sender transfer: %+v", senderSide[0])
	}
	if receiverSide[0] != (Transfer{ObjectID: "jacket-2", FromOwnerID: "bob", ToOwnerID: "alice"}) {
		t.Errorf("unexpected receiver transfer: %+v", receiverSide[0])
	}
}

func TestProposalIsTerminal(t *testing.T) {
	for status, want := range map[string]bool{
		ProposalPending:   false,
		ProposalAccepted:  true,
		ProposalDeclined:  true,
		ProposalCancelled: true,
	} {
		p := &Proposal{Status: status}
		if got := p.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%q) = %v, want %v", status, got, want)
		}
	}
}
