package model

import "time"

// Proposal is an offer to exchange sets of objects between two users.
type Proposal struct {
	ID            string     `json:"id"`
	SenderID      string     `json:"sender_id"`
	ReceiverID    string     `json:"receiver_id"`
	SenderItems   []string   `json:"sender_items"`
	ReceiverItems []string   `json:"receiver_items"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	FlaggedAt     *time.Time `json:"flagged_at,omitempty"`
}

// Proposal statuses.
const (
	ProposalPending   = "pending"
	ProposalAccepted  = "accepted"
	ProposalDeclined  = "declined"
	ProposalCancelled = "cancelled"
)

// Proposal item sides.
const (
	SideSender   = "sender"
	SideReceiver = "receiver"
)

// IsTerminal reports whether no further transition is allowed.
func (p *Proposal) IsTerminal() bool {
	return p.Status != ProposalPending
}

// Transfers returns the ownership moves that accepting p performs:
// sender items to the receiver first, then receiver items to the sender.
func (p *Proposal) Transfers() (senderSide, receiverSide []Transfer) {
	for _, id := range p.SenderItems {
		senderSide = append(senderSide, Transfer{ObjectID: id, FromOwnerID: p.SenderID, ToOwnerID: p.ReceiverID})
	}
	for _, id := range p.ReceiverItems {
		receiverSide = append(receiverSide, Transfer{ObjectID: id, FromOwnerID: p.ReceiverID, ToOwnerID: p.SenderID})
	}
	return senderSide, receiverSide
}
