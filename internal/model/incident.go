package model

import "time"

// Incident records a condition that broke an invariant and needs an operator.
type Incident struct {
	ID         string     `json:"id"`
	ProposalID string     `json:"proposal_id"`
	Kind       string     `json:"kind"`
	Detail     string     `json:"detail"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
}

// IncidentPartialTransfer marks a two-phase exchange that moved only one side.
const IncidentPartialTransfer = "partial_transfer"
