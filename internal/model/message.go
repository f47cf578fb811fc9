package model

import "time"

// Message is an immutable point-to-point chat message. Seq is assigned by
// the store and breaks ties between equal timestamps.
type Message struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// Before reports whether m sorts before o in conversation order.
func (m Message) Before(o Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	if m.Seq != o.Seq {
		return m.Seq < o.Seq
	}
	return m.ID < o.ID
}

// ConversationSummary is one entry of a user's conversation list.
type ConversationSummary struct {
	PeerID       string  `json:"peer_id"`
	PeerUsername string  `json:"peer_username"`
	Last         Message `json:"last"`
}
