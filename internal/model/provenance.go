package model

import "time"

// ProvenanceEntry is an immutable record of one ownership change of one object.
type ProvenanceEntry struct {
	ID          string    `json:"id"`
	ObjectID    string    `json:"object_id"`
	FromOwnerID *string   `json:"from_owner_id,omitempty"`
	ToOwnerID   string    `json:"to_owner_id"`
	Kind        string    `json:"kind"`
	Price       *int64    `json:"price,omitempty"`
	ProposalID  string    `json:"proposal_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Joined fields (not always populated).
	FromUsername string `json:"from_username,omitempty"`
	ToUsername   string `json:"to_username,omitempty"`
}

// Provenance event kinds.
const (
	ProvenanceIntake = "intake"
	ProvenanceTrade  = "trade"
	ProvenanceSale   = "sale"
)
