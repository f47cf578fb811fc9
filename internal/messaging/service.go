package messaging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// MaxMessageLength is the longest accepted message, in runes.
const MaxMessageLength = 4000

// Service is the server side of messaging: it appends to the conversation
// store and then notifies the channel.
type Service struct {
	DB       *sql.DB
	Realtime Realtime
	Log      *slog.Logger
}

// Send appends a message from senderID to receiverID and publishes it. id
// may be generated by the client; resending the same id is harmless. A
// failed append is returned as *model.DeliveryError carrying the text; an id
// already taken by another conversation is model.ErrInvalidMessage. A
// failed publish is only logged, since the message is already durable.
func (s *Service) Send(ctx context.Context, id, senderID, receiverID, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" || utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, model.ErrInvalidMessage
	}
	if senderID == receiverID {
		return nil, model.ErrInvalidMessage
	}

	receiver, err := store.GetUser(ctx, s.DB, receiverID)
	if err != nil {
		return nil, &model.DeliveryError{LocalID: id, Text: text, Err: err}
	}
	if receiver == nil || receiver.DeletedAt != nil {
		return nil, model.ErrNotFound
	}

	m, err := store.AppendMessage(ctx, s.DB, id, senderID, receiverID, text)
	if errors.Is(err, model.ErrInvalidMessage) {
		return nil, err
	}
	if err != nil {
		return nil, &model.DeliveryError{LocalID: id, Text: text, Err: err}
	}

	key := ChannelKey(senderID, receiverID)
	if err := s.Realtime.Publish(ctx, key, Event{Kind: EventInsert, Message: m}); err != nil {
		s.Log.Warn("publishing message", "channel", key, "message", m.ID, "error", err)
	}
	return m, nil
}

// History returns the conversation between a and b in store order.
func (s *Service) History(ctx context.Context, a, b string, limit int) ([]model.Message, error) {
	return store.ListConversation(ctx, s.DB, a, b, limit)
}

// Conversations lists userID's conversations, most recently active first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	return store.ListConversations(ctx, s.DB, userID)
}

// Typing tells the channel that senderID is composing a message to receiverID.
func (s *Service) Typing(ctx context.Context, senderID, receiverID string) error {
	if err := s.Realtime.Publish(ctx, ChannelKey(senderID, receiverID),
		Event{Kind: EventBroadcast, Name: BroadcastTyping, From: senderID}); err != nil {
		return fmt.Errorf("sending typing signal: %w", err)
	}
	return nil
}
