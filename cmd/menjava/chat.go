package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/menjava/internal/messaging"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

func newChatCmd(a *app) *cobra.Command {
	var as, with string
	cmd := &cobra.Command{
		Use:   "chat --as <username> --with <username>",
		Short: "Open a terminal conversation between two accounts",
		Long: `chat opens a live conversation view against the local database. Each
input line is sent as a message; "/typing" sends a typing signal and
"/quit" leaves. With MENJAVA_REALTIME=redis, two chat sessions or a chat
session and a running server see each other live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.chat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), as, with)
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "your username")
	cmd.Flags().StringVar(&with, "with", "", "the other participant's username")
	cmd.MarkFlagRequired("as")
	cmd.MarkFlagRequired("with")
	return cmd
}

func (a *app) chat(ctx context.Context, in io.Reader, out io.Writer, as, with string) error {
	log := slog.Default()
	database, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	self, err := store.GetUserByUsername(ctx, database, as)
	if err != nil {
		return err
	}
	peer, err := store.GetUserByUsername(ctx, database, with)
	if err != nil {
		return err
	}
	if self == nil || peer == nil {
		return fmt.Errorf("both accounts must exist: %w", model.ErrNotFound)
	}

	rt, closeRealtime, err := openRealtime(ctx, a.cfg, log)
	if err != nil {
		return err
	}
	defer closeRealtime()

	view := &chatView{out: out, self: self.ID, names: map[string]string{self.ID: self.Username, peer.ID: peer.Username}}
	conv, err := messaging.OpenConversation(ctx, rt,
		&messaging.Service{DB: database, Realtime: rt, Log: log},
		self.ID, peer.ID, messaging.ConversationOptions{OnChange: view.changed})
	if err != nil {
		return err
	}
	defer conv.Close()
	view.mu.Lock()
	view.conv = conv
	view.mu.Unlock()
	view.changed()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/typing":
			if err := conv.Typing(ctx); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			continue
		}
		if _, err := conv.Send(ctx, line); err != nil {
			fmt.Fprintf(out, "! not sent: %v\n", err)
		}
	}
	return scanner.Err()
}

// chatView prints lines the terminal has not shown yet, plus peer status
// changes.
type chatView struct {
	out   io.Writer
	self  string
	names map[string]string
	conv  *messaging.Conversation

	mu     sync.Mutex
	shown  map[string]bool
	status string
}

func (v *chatView) changed() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.conv == nil {
		return
	}
	if v.shown == nil {
		v.shown = make(map[string]bool)
	}

	for _, m := range v.conv.Messages() {
		if m.Pending || v.shown[m.ID] {
			continue
		}
		v.shown[m.ID] = true
		fmt.Fprintf(v.out, "[%s] %s: %s\n", m.CreatedAt.Local().Format(time.TimeOnly), v.names[m.SenderID], m.Text)
	}

	var status []string
	if v.conv.PeerOnline() {
		status = append(status, "online")
	}
	if v.conv.PeerTyping() {
		status = append(status, "typing")
	}
	if s := strings.Join(status, ", "); s != v.status {
		v.status = s
		if s == "" {
			s = "offline"
		}
		fmt.Fprintf(v.out, "-- peer is %s\n", s)
	}
}
