package model

import "time"

// Link is a pairwise connection request between two users.
type Link struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	ReceiverID  string    `json:"receiver_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Link statuses.
const (
	LinkPending  = "pending"
	LinkAccepted = "accepted"
	LinkRejected = "rejected"
)
