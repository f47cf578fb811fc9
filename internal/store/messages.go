package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/uid"
)

// AppendMessage durably appends a message. The caller may supply the ID
// (clients generate it before sending); appending the same ID again returns
// the stored message instead of creating a duplicate.
func AppendMessage(ctx context.Context, database *sql.DB, id, senderID, receiverID, text string) (*model.Message, error) {
	if id == "" {
		id = uid.New()
	}

	_, err := database.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, text, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, senderID, receiverID, text, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	m, err := GetMessage(ctx, database, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("appending message: %s not found after insert", id)
	}
	if m.SenderID != senderID || m.ReceiverID != receiverID {
		return nil, fmt.Errorf("appending message: id %s already used by another conversation: %w", id, model.ErrInvalidMessage)
	}
	return m, nil
}

// GetMessage returns a message by ID.
func GetMessage(ctx context.Context, q db.Querier, id string) (*model.Message, error) {
	m := &model.Message{}
	err := q.QueryRowContext(ctx,
		`SELECT seq, id, sender_id, receiver_id, text, created_at FROM messages WHERE id = ?`, id,
	).Scan(&m.Seq, &m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return m, nil
}

// ListConversation returns the messages exchanged between a and b in store
// order (timestamp, then sequence). A positive limit keeps only the most
// recent messages.
func ListConversation(ctx context.Context, q db.Querier, a, b string, limit int) ([]model.Message, error) {
	query := `SELECT seq, id, sender_id, receiver_id, text, created_at FROM messages
	          WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
	          ORDER BY created_at DESC, seq DESC`
	args := []any{a, b, b, a}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversation: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.Seq, &m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest were fetched first so LIMIT keeps the tail; flip to oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListConversations returns one summary per peer userID has exchanged
// messages with, most recently active first.
func ListConversations(ctx context.Context, q db.Querier, userID string) ([]model.ConversationSummary, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT peer, u.username, m.seq, m.id, m.sender_id, m.receiver_id, m.text, m.created_at
		 FROM (
		     SELECT CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS peer, MAX(seq) AS last_seq
		     FROM messages
		     WHERE sender_id = ? OR receiver_id = ?
		     GROUP BY peer
		 ) c
		 JOIN messages m ON m.seq = c.last_seq
		 JOIN users u ON u.id = c.peer
		 ORDER BY m.created_at DESC, m.seq DESC`,
		userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var summaries []model.ConversationSummary
	for rows.Next() {
		var s model.ConversationSummary
		m := &s.Last
		if err := rows.Scan(&s.PeerID, &s.PeerUsername, &m.Seq, &m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
