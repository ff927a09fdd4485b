package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// ChatMessage is a single community chat frame.
type ChatMessage struct {
	Type string `json:"type"` // always "chat"
	User string `json:"user"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// ChatHub fans community chat messages out to every connected client and
// keeps the last N messages in memory for replay on join. Nothing here
// survives a restart.
type ChatHub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	history []ChatMessage
	limit   int
	seen    atomic.Int64
}

// NewChatHub builds a hub keeping up to limit messages of history
// (default 100 when limit <= 0).
func NewChatHub(limit int) *ChatHub {
	if limit <= 0 {
		limit = 100
	}
	return &ChatHub{clients: map[*client]struct{}{}, limit: limit}
}

// Online reports the number of connected chat clients.
func (h *ChatHub) Online() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// MessagesSeen reports the total chat messages broadcast since start.
func (h *ChatHub) MessagesSeen() int64 { return h.seen.Load() }

// ServeHTTP upgrades the connection and runs the client until it drops.
// The user name comes from the "user" query param ("anonymous" if absent).
func (h *ChatHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("chat upgrade", "error", err)
		return
	}
	user := r.URL.Query().Get("user")
	if user == "" {
		user = "anonymous"
	}
	c := newClient(conn, user)

	// Queue the history frame while still holding the lock: once the lock
	// is released a broadcast may mark this client slow and close its send
	// channel, and a later trySend would panic.
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if b, err := json.Marshal(map[string]any{"type": "history", "messages": append([]ChatMessage{}, h.history...)}); err == nil {
		c.trySend(b)
	}
	h.mu.Unlock()

	go c.writePump()
	h.readLoop(c)
}

func (h *ChatHub) readLoop(c *client) {
	defer h.drop(c)
	c.setupRead()
	for {
		var in struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := c.conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Type != "chat" || in.Text == "" {
			continue
		}
		h.Broadcast(ChatMessage{Type: "chat", User: c.user, Text: in.Text, TS: time.Now().Unix()})
	}
}

// Broadcast stamps the message into history and fans it out. Clients whose
// send buffer is full are disconnected.
func (h *ChatHub) Broadcast(msg ChatMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.seen.Add(1)

	h.mu.Lock()
	h.history = append(h.history, msg)
	if n := len(h.history) - h.limit; n > 0 {
		h.history = h.history[n:]
	}
	var slow []*client
	for c := range h.clients {
		if !c.trySend(b) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *ChatHub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}
