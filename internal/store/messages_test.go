package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/uid"
)

func TestAppendMessageIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")

	id := uid.New()
	first, err := AppendMessage(ctx, database, id, alice.ID, bob.ID, "hi")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	again, err := AppendMessage(ctx, database, id, alice.ID, bob.ID, "hi")
	if err != nil {
		t.Fatalf("AppendMessage retry: %v", err)
	}
	if first.Seq != again.Seq {
		t.Errorf("retry created a new row: seq %d vs %d", first.Seq, again.Seq)
	}

	msgs, _ := ListConversation(ctx, database, alice.ID, bob.ID, 0)
	if len(msgs) != 1 {
		t.Errorf("expected 1 message, got %d", len(msgs))
	}

	if _, err := AppendMessage(ctx, database, id, bob.ID, alice.ID, "hijack"); !errors.Is(err, model.ErrInvalidMessage) {
		t.Errorf("reusing an id for a different message: expected ErrInvalidMessage, got %v", err)
	}
}

func TestListConversationOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	carol := mustUser(t, database, "carol")

	for _, m := range []struct{ from, to, text string }{
		{alice.ID, bob.ID, "one"},
		{bob.ID, alice.ID, "two"},
		{alice.ID, carol.ID, "elsewhere"},
		{alice.ID, bob.ID, "three"},
	} {
		if _, err := AppendMessage(ctx, database, "", m.from, m.to, m.text); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	msgs, err := ListConversation(ctx, database, bob.ID, alice.ID, 0)
	if err != nil {
		t.Fatalf("ListConversation: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].Text != want {
			t.Errorf("message %d: got %q, want %q", i, msgs[i].Text, want)
		}
	}

	tail, _ := ListConversation(ctx, database, alice.ID, bob.ID, 2)
	if len(tail) != 2 || tail[0].Text != "two" || tail[1].Text != "three" {
		t.Errorf("expected last two messages in order, got %+v", tail)
	}
}

func TestListConversations(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, database, "alice")
	bob := mustUser(t, database, "bob")
	carol := mustUser(t, database, "carol")

	AppendMessage(ctx, database, "", alice.ID, bob.ID, "hello bob")
	AppendMessage(ctx, database, "", carol.ID, alice.ID, "hello alice")
	AppendMessage(ctx, database, "", bob.ID, alice.ID, "hey")

	convs, err := ListConversations(ctx, database, alice.ID)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if convs[0].PeerUsername != "bob" || convs[0].Last.Text != "hey" {
		t.Errorf("expected bob's conversation first with last message 'hey', got %+v", convs[0])
	}
	if convs[1].PeerUsername != "carol" {
		t.Errorf("expected carol second, got %+v", convs[1])
	}
}
