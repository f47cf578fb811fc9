package messaging

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/uid"
)

// DefaultTypingTTL is how long a typing signal is shown without a refresh.
const DefaultTypingTTL = 3 * time.Second

// Backend is what a Conversation needs from the server. *Service satisfies it.
type Backend interface {
	Send(ctx context.Context, id, senderID, receiverID, text string) (*model.Message, error)
	History(ctx context.Context, a, b string, limit int) ([]model.Message, error)
	Typing(ctx context.Context, senderID, receiverID string) error
}

// Rendered is one line of a conversation view. Pending lines are local
// sends the store has not confirmed yet.
type Rendered struct {
	model.Message
	Pending bool `json:"pending"`
}

// ConversationOptions tunes a Conversation. Zero values pick defaults.
type ConversationOptions struct {
	TypingTTL    time.Duration
	HistoryLimit int
	Now          func() time.Time
	// OnChange is called after every change to the rendered state, from
	// whichever goroutine made it.
	OnChange func()
}

type pendingSend struct {
	text     string
	queuedAt time.Time
}

// Conversation is one participant's live view of a conversation. Messages
// are merged by ID and ordered like the store, so neither echo nor arrival
// order can duplicate or reorder them. Outgoing messages are rendered
// immediately and rolled back if the append fails.
type Conversation struct {
	self, peer string
	backend    Backend
	sub        Subscription
	opts       ConversationOptions

	mu          sync.Mutex
	confirmed   map[string]model.Message
	pending     map[string]pendingSend
	online      map[string]Presence
	typingUntil time.Time
}

// OpenConversation subscribes to the channel shared by self and peer,
// announces self as online and loads history. Subscribing happens before
// the history fetch so nothing sent in between is lost.
func OpenConversation(ctx context.Context, rt Realtime, backend Backend, self, peer string, opts ConversationOptions) (*Conversation, error) {
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = DefaultTypingTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Conversation{
		self:      self,
		peer:      peer,
		backend:   backend,
		opts:      opts,
		confirmed: make(map[string]model.Message),
		pending:   make(map[string]pendingSend),
		online:    make(map[string]Presence),
	}

	sub, err := rt.Subscribe(ctx, ChannelKey(self, peer), Handlers{
		OnInsert:    c.receive,
		OnPresence:  c.presenceSync,
		OnBroadcast: c.broadcast,
	})
	if err != nil {
		return nil, err
	}
	c.sub = sub

	if err := sub.Track(ctx, Presence{UserID: self, OnlineAt: opts.Now().UTC()}); err != nil {
		sub.Close()
		return nil, err
	}
	if err := c.Refresh(ctx); err != nil {
		sub.Close()
		return nil, err
	}
	return c, nil
}

// Refresh merges the stored history into the view.
func (c *Conversation) Refresh(ctx context.Context) error {
	history, err := c.backend.History(ctx, c.self, c.peer, c.opts.HistoryLimit)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for _, m := range history {
		c.mergeLocked(m)
	}
	c.mu.Unlock()
	c.changed()
	return nil
}

// Send renders text immediately and appends it. On failure the pending line
// is removed. Transient failures come back as *model.DeliveryError carrying
// text so the input can be restored and resent; a message that can never be
// accepted keeps its domain error.
func (c *Conversation) Send(ctx context.Context, text string) (*model.Message, error) {
	id := uid.New()

	c.mu.Lock()
	c.pending[id] = pendingSend{text: text, queuedAt: c.opts.Now().UTC()}
	c.mu.Unlock()
	c.changed()

	m, err := c.backend.Send(ctx, id, c.self, c.peer, text)

	c.mu.Lock()
	delete(c.pending, id)
	if err == nil {
		c.mergeLocked(*m)
	}
	c.mu.Unlock()
	c.changed()

	if err != nil {
		if !permanent(err) {
			var de *model.DeliveryError
			if !errors.As(err, &de) {
				err = &model.DeliveryError{LocalID: id, Text: text, Err: err}
			}
		}
		return nil, err
	}
	return m, nil
}

// Typing signals the peer that self is composing.
func (c *Conversation) Typing(ctx context.Context) error {
	return c.backend.Typing(ctx, c.self, c.peer)
}

// Messages returns the rendered conversation: confirmed messages in store
// order followed by pending sends in the order they were queued.
func (c *Conversation) Messages() []Rendered {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Rendered, 0, len(c.confirmed)+len(c.pending))
	for _, m := range c.confirmed {
		out = append(out, Rendered{Message: m})
	}
	slices.SortFunc(out, func(a, b Rendered) int {
		if a.Before(b.Message) {
			return -1
		}
		if b.Before(a.Message) {
			return 1
		}
		return 0
	})

	var pending []Rendered
	for id, p := range c.pending {
		pending = append(pending, Rendered{
			Message: model.Message{ID: id, SenderID: c.self, ReceiverID: c.peer, Text: p.text, CreatedAt: p.queuedAt},
			Pending: true,
		})
	}
	slices.SortFunc(pending, func(a, b Rendered) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return append(out, pending...)
}

// PeerOnline reports whether the peer is currently tracked on the channel.
func (c *Conversation) PeerOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.online[c.peer]
	return ok
}

// PeerTyping reports whether a typing signal from the peer is still fresh.
func (c *Conversation) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Now().Before(c.typingUntil)
}

// Close leaves the channel.
func (c *Conversation) Close() error {
	return c.sub.Close()
}

func (c *Conversation) receive(m model.Message) {
	c.mu.Lock()
	c.mergeLocked(m)
	c.mu.Unlock()
	c.changed()
}

func (c *Conversation) presenceSync(present []Presence) {
	c.mu.Lock()
	c.online = make(map[string]Presence, len(present))
	for _, p := range present {
		c.online[p.UserID] = p
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Conversation) broadcast(name, from string) {
	if name != BroadcastTyping || from != c.peer {
		return
	}
	c.mu.Lock()
	c.typingUntil = c.opts.Now().Add(c.opts.TypingTTL)
	c.mu.Unlock()
	c.changed()
}

// mergeLocked records a confirmed message. A confirmed message replaces
// the pending line with the same ID.
func (c *Conversation) mergeLocked(m model.Message) {
	delete(c.pending, m.ID)
	c.confirmed[m.ID] = m
}

func (c *Conversation) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange()
	}
}

// permanent reports errors that resending the same message cannot fix.
func permanent(err error) bool {
	return errors.Is(err, model.ErrInvalidMessage) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrNotAuthorized)
}
