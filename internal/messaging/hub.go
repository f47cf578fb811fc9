package messaging

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

const hubBuffer = 64

var errSubscriptionClosed = errors.New("subscription closed")

// Hub is the in-process Realtime. Each subscription gets its own delivery
// goroutine; publishing never blocks on a slow subscriber, it drops the
// event instead.
type Hub struct {
	log *slog.Logger

	mu       sync.Mutex
	channels map[string]map[*hubSub]struct{}
}

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, channels: make(map[string]map[*hubSub]struct{})}
}

type hubSub struct {
	hub      *Hub
	key      string
	handlers Handlers
	events   chan Event
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once

	// guarded by hub.mu
	presence *Presence
}

func (h *Hub) Subscribe(_ context.Context, key string, handlers Handlers) (Subscription, error) {
	s := &hubSub{
		hub:      h,
		key:      key,
		handlers: handlers,
		events:   make(chan Event, hubBuffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	h.mu.Lock()
	if h.channels[key] == nil {
		h.channels[key] = make(map[*hubSub]struct{})
	}
	h.channels[key][s] = struct{}{}
	// A new subscriber learns who is already here.
	if present := h.presenceLocked(key); len(present) > 0 {
		s.deliver(Event{Kind: EventPresence, Presence: present})
	}
	h.mu.Unlock()

	go s.run()
	return s, nil
}

func (h *Hub) Publish(_ context.Context, key string, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publishLocked(key, e)
	return nil
}

func (h *Hub) publishLocked(key string, e Event) {
	for s := range h.channels[key] {
		s.deliver(e)
	}
}

// presenceLocked returns the tracked users of key, one entry per user.
func (h *Hub) presenceLocked(key string) []Presence {
	var all []Presence
	for s := range h.channels[key] {
		if s.presence != nil {
			all = append(all, *s.presence)
		}
	}
	slices.SortFunc(all, func(a, b Presence) int { return a.OnlineAt.Compare(b.OnlineAt) })
	all = lo.UniqBy(all, func(p Presence) string { return p.UserID })
	slices.SortFunc(all, func(a, b Presence) int { return cmp.Compare(a.UserID, b.UserID) })
	return all
}

// Subscribers returns how many live subscriptions key has.
func (h *Hub) Subscribers(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[key])
}

func (s *hubSub) deliver(e Event) {
	select {
	case s.events <- e:
	default:
		s.hub.log.Warn("dropping realtime event for slow subscriber", "channel", s.key, "kind", e.Kind)
	}
}

func (s *hubSub) run() {
	defer close(s.stopped)
	for {
		select {
		case e := <-s.events:
			s.handlers.dispatch(e)
		case <-s.done:
			return
		}
	}
}

func (s *hubSub) Track(_ context.Context, p Presence) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.channels[s.key][s]; !ok {
		return errSubscriptionClosed
	}
	s.presence = &p
	h.publishLocked(s.key, Event{Kind: EventPresence, Presence: h.presenceLocked(s.key)})
	return nil
}

// Close leaves the channel and waits for the delivery goroutine to exit.
// It must not be called from inside a handler.
func (s *hubSub) Close() error {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		delete(h.channels[s.key], s)
		if len(h.channels[s.key]) == 0 {
			delete(h.channels, s.key)
		} else if s.presence != nil {
			h.publishLocked(s.key, Event{Kind: EventPresence, Presence: h.presenceLocked(s.key)})
		}
		h.mu.Unlock()

		close(s.done)
		<-s.stopped
	})
	return nil
}
