// Package messaging delivers point-to-point conversations: durable appends
// fanned out over a per-conversation realtime channel, with presence and
// typing signals on the side.
package messaging

import (
	"context"
	"time"

	"github.com/erazemk/menjava/internal/model"
)

// ChannelKey returns the channel shared by a and b. Both participants
// derive the same key regardless of argument order.
func ChannelKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}

// Event kinds carried on a channel.
const (
	EventInsert    = "insert"
	EventPresence  = "presence"
	EventBroadcast = "broadcast"
)

// BroadcastTyping is the broadcast name for "the sender is composing".
const BroadcastTyping = "typing"

// Presence is one tracked participant of a channel.
type Presence struct {
	UserID   string    `json:"user_id"`
	OnlineAt time.Time `json:"online_at"`
}

// Event is a single channel notification. Insert events carry Message,
// presence events carry the full tracked set and broadcasts carry Name and
// From.
type Event struct {
	Kind     string         `json:"kind"`
	Message  *model.Message `json:"message,omitempty"`
	Presence []Presence     `json:"presence,omitempty"`
	Name     string         `json:"name,omitempty"`
	From     string         `json:"from,omitempty"`
}

// Handlers receive channel events. Nil handlers are skipped. Handlers for
// one subscription are called sequentially, in delivery order.
type Handlers struct {
	OnInsert    func(model.Message)
	OnPresence  func([]Presence)
	OnBroadcast func(name, from string)
}

func (h Handlers) dispatch(e Event) {
	switch e.Kind {
	case EventInsert:
		if h.OnInsert != nil && e.Message != nil {
			h.OnInsert(*e.Message)
		}
	case EventPresence:
		if h.OnPresence != nil {
			h.OnPresence(e.Presence)
		}
	case EventBroadcast:
		if h.OnBroadcast != nil {
			h.OnBroadcast(e.Name, e.From)
		}
	}
}

// Realtime is a pub/sub channel service. Delivery is best effort; the
// conversation store stays the source of truth.
type Realtime interface {
	Subscribe(ctx context.Context, key string, h Handlers) (Subscription, error)
	Publish(ctx context.Context, key string, e Event) error
}

// Subscription is a live channel membership. It must be closed when the
// conversation view goes away.
type Subscription interface {
	// Track announces p on the channel until the subscription is closed.
	Track(ctx context.Context, p Presence) error
	Close() error
}
