package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/menjava/internal/model"
)

func TestChannelKeyIsSymmetric(t *testing.T) {
	require.Equal(t, ChannelKey("alice", "bob"), ChannelKey("bob", "alice"))
	require.Equal(t, "dm:alice:bob", ChannelKey("bob", "alice"))
	require.NotEqual(t, ChannelKey("alice", "bob"), ChannelKey("alice", "carol"))
}

// recorder collects events from one subscription.
type recorder struct {
	inserts   chan model.Message
	presence  chan []Presence
	broadcast chan [2]string
}

func newRecorder() *recorder {
	return &recorder{
		inserts:   make(chan model.Message, 16),
		presence:  make(chan []Presence, 16),
		broadcast: make(chan [2]string, 16),
	}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnInsert:    func(m model.Message) { r.inserts <- m },
		OnPresence:  func(p []Presence) { r.presence <- p },
		OnBroadcast: func(name, from string) { r.broadcast <- [2]string{name, from} },
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func TestHubDeliversOnlyToChannel(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(discardLogger())

	ab, other := newRecorder(), newRecorder()
	subAB, err := hub.Subscribe(ctx, ChannelKey("a", "b"), ab.handlers())
	require.NoError(t, err)
	defer subAB.Close()
	subOther, err := hub.Subscribe(ctx, ChannelKey("a", "c"), other.handlers())
	require.NoError(t, err)
	defer subOther.Close()

	require.NoError(t, hub.Publish(ctx, ChannelKey("b", "a"), Event{Kind: EventInsert, Message: &model.Message{ID: "m1", Text: "hi"}}))
	require.Equal(t, "m1", receive(t, ab.inserts).ID)

	require.NoError(t, hub.Publish(ctx, ChannelKey("a", "b"), Event{Kind: EventBroadcast, Name: BroadcastTyping, From: "a"}))
	require.Equal(t, [2]string{BroadcastTyping, "a"}, receive(t, ab.broadcast))

	select {
	case m := <-other.inserts:
		t.Fatalf("unrelated channel received %+v", m)
	default:
	}
}

func TestHubPresence(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(discardLogger())
	key := ChannelKey("a", "b")

	ra, rb := newRecorder(), newRecorder()
	subA, err := hub.Subscribe(ctx, key, ra.handlers())
	require.NoError(t, err)
	defer subA.Close()
	require.NoError(t, subA.Track(ctx, Presence{UserID: "a", OnlineAt: time.Now()}))
	require.Len(t, receive(t, ra.presence), 1)

	subB, err := hub.Subscribe(ctx, key, rb.handlers())
	require.NoError(t, err)
	// b is told a is already here.
	initial := receive(t, rb.presence)
	require.Len(t, initial, 1)
	require.Equal(t, "a", initial[0].UserID)

	require.NoError(t, subB.Track(ctx, Presence{UserID: "b", OnlineAt: time.Now()}))
	both := receive(t, ra.presence)
	require.Len(t, both, 2)
	require.Equal(t, []string{"a", "b"}, []string{both[0].UserID, both[1].UserID})

	require.NoError(t, subB.Close())
	afterLeave := receive(t, ra.presence)
	require.Len(t, afterLeave, 1)
	require.Equal(t, "a", afterLeave[0].UserID)

	require.Error(t, subB.Track(ctx, Presence{UserID: "b"}), "tracking on a closed subscription")
	require.NoError(t, subB.Close(), "second close is a no-op")
}

func TestHubCloseRemovesChannel(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(discardLogger())
	key := ChannelKey("a", "b")

	subs := make([]Subscription, 3)
	for i := range subs {
		s, err := hub.Subscribe(ctx, key, Handlers{})
		require.NoError(t, err)
		subs[i] = s
	}
	require.Equal(t, 3, hub.Subscribers(key))

	for _, s := range subs {
		require.NoError(t, s.Close())
	}
	require.Equal(t, 0, hub.Subscribers(key))
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(discardLogger())
	key := ChannelKey("a", "b")

	release := make(chan struct{})
	sub, err := hub.Subscribe(ctx, key, Handlers{OnInsert: func(model.Message) { <-release }})
	require.NoError(t, err)

	// Publishing must not block even though the handler is stuck.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range hubBuffer * 2 {
			hub.Publish(ctx, key, Event{Kind: EventInsert, Message: &model.Message{ID: "m"}})
		}
	}()
	receive(t, done)

	close(release)
	require.NoError(t, sub.Close())
}
