package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/erazemk/menjava/internal/messaging"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500

	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer and the token check.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamError reports a rejected client frame. Text echoes the frame so the
// client can offer a resend.
type streamError struct {
	Kind  string `json:"kind"`
	ID    string `json:"id,omitempty"`
	Code  string `json:"code"`
	Error string `json:"error"`
	Text  string `json:"text,omitempty"`
}

// ConversationsHandler serves direct messages and their live stream.
type ConversationsHandler struct {
	Messaging *messaging.Service
	Realtime  messaging.Realtime
	Log       *slog.Logger
}

type sendMessageRequest struct {
	ID   string `json:"id" validate:"omitempty,max=64"`
	Text string `json:"text"`
}

// streamFrame is a client-to-server websocket frame.
type streamFrame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
}

// List handles GET /api/conversations.
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.Messaging.Conversations(r.Context(), GetClaims(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if conversations == nil {
		conversations = []model.ConversationSummary{}
	}
	jsonResponse(w, http.StatusOK, conversations)
}

// History handles GET /api/conversations/{peer}/messages?limit=n.
func (h *ConversationsHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	messages, err := h.Messaging.History(r.Context(), GetClaims(r.Context()).UserID, chi.URLParam(r, "peer"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	jsonResponse(w, http.StatusOK, messages)
}

// Send handles POST /api/conversations/{peer}/messages. Clients should send
// their own id so a retry after a lost response is not stored twice.
func (h *ConversationsHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	m, err := h.Messaging.Send(r.Context(), req.ID, GetClaims(r.Context()).UserID, chi.URLParam(r, "peer"), req.Text)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, m)
}

// Typing handles POST /api/conversations/{peer}/typing.
func (h *ConversationsHandler) Typing(w http.ResponseWriter, r *http.Request) {
	if err := h.Messaging.Typing(r.Context(), GetClaims(r.Context()).UserID, chi.URLParam(r, "peer")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stream handles GET /api/conversations/{peer}/stream. It upgrades to a
// websocket, tracks the caller's presence on the conversation channel and
// relays every channel event as JSON. The client may send typing and send
// frames back.
func (h *ConversationsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	peer := chi.URLParam(r, "peer")

	user, err := store.GetUser(r.Context(), h.Messaging.DB, peer)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if user == nil || user.DeletedAt != nil || peer == claims.UserID {
		writeDomainError(w, r, model.ErrNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", "user", claims.Username, "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	key := messaging.ChannelKey(claims.UserID, peer)
	events := make(chan messaging.Event, streamBuffer)
	forward := func(e messaging.Event) {
		select {
		case events <- e:
		default:
			h.Log.Warn("stream client too slow, dropping event", "channel", key, "kind", e.Kind)
		}
	}

	sub, err := h.Realtime.Subscribe(ctx, key, messaging.Handlers{
		OnInsert: func(m model.Message) {
			forward(messaging.Event{Kind: messaging.EventInsert, Message: &m})
		},
		OnPresence: func(p []messaging.Presence) {
			forward(messaging.Event{Kind: messaging.EventPresence, Presence: p})
		},
		OnBroadcast: func(name, from string) {
			forward(messaging.Event{Kind: messaging.EventBroadcast, Name: name, From: from})
		},
	})
	if err != nil {
		h.Log.Error("subscribing stream", "channel", key, "error", err)
		return
	}
	defer sub.Close()

	if err := sub.Track(ctx, messaging.Presence{UserID: claims.UserID, OnlineAt: time.Now().UTC()}); err != nil {
		h.Log.Error("tracking presence", "channel", key, "error", err)
		return
	}

	// The loop below is the connection's only writer; the reader hands its
	// replies over instead of writing them.
	replies := make(chan streamError)
	stop := make(chan struct{})
	defer close(stop)
	reply := func(e streamError) {
		select {
		case replies <- e:
		case <-stop:
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readFrames(r, conn, claims.UserID, peer, reply)
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case e := <-events:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case e := <-replies:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// readFrames handles client frames until the connection fails or closes.
func (h *ConversationsHandler) readFrames(r *http.Request, conn *websocket.Conn, self, peer string, reply func(streamError)) {
	conn.SetReadLimit(16 << 10)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		var f streamFrame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Debug("stream closed", "user", self, "error", err)
			}
			return
		}

		switch f.Type {
		case "typing":
			if err := h.Messaging.Typing(r.Context(), self, peer); err != nil {
				h.Log.Warn("stream typing", "user", self, "error", err)
			}
		case "send":
			// The sender sees its message through the insert event.
			if _, err := h.Messaging.Send(r.Context(), f.ID, self, peer, f.Text); err != nil {
				h.Log.Warn("stream send", "user", self, "message", f.ID, "error", err)
				_, body := describeError(err)
				reply(streamError{Kind: "error", ID: f.ID, Code: body.Code, Error: body.Error, Text: f.Text})
			}
		}
	}
}
