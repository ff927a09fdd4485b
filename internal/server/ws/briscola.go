package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
)

// SessionStore is the persistence hook for multiplayer rooms: a row is
// opened per seated player and abandoned when the socket drops without a
// completed game.
type SessionStore interface {
	Open(ctx context.Context, username, roomID string) (uint, error)
	Abandon(ctx context.Context, sessionID uint) error
}

type roomClient struct {
	*client
	sessionID uint
}

type room struct {
	id      string
	clients map[*roomClient]struct{}
	started bool
}

func (r *room) names() []string {
	out := make([]string, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c.user)
	}
	return out
}

// RoomManager keeps the briscola rooms: a map from room id to seated
// clients. Client frames other than the synthesized control frames are
// relayed verbatim to the other seats.
type RoomManager struct {
	mu       sync.Mutex
	rooms    map[string]*room
	size     int
	sessions SessionStore
}

// NewRoomManager builds a manager with the given seats per room
// (default 2, the briscola head-to-head variant).
func NewRoomManager(size int, sessions SessionStore) *RoomManager {
	if size <= 0 {
		size = 2
	}
	return &RoomManager{rooms: map[string]*room{}, size: size, sessions: sessions}
}

// Rooms reports the number of live rooms.
func (m *RoomManager) Rooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Players reports the number of seated players across all rooms.
func (m *RoomManager) Players() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rooms {
		n += len(r.clients)
	}
	return n
}

// ServeHTTP upgrades the connection and seats the client in the room named
// by the "room" query param. Missing params or a full room produce an
// error frame and a close.
func (m *RoomManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	user := r.URL.Query().Get("user")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("briscola upgrade", "error", err)
		return
	}
	if roomID == "" || user == "" {
		_ = conn.WriteJSON(map[string]string{"type": "error", "code": "bad_request"})
		_ = conn.Close()
		return
	}

	c := &roomClient{client: newClient(conn, user)}
	rm, ok := m.join(roomID, c)
	if !ok {
		_ = conn.WriteJSON(map[string]string{"type": "error", "code": "room_full"})
		_ = conn.Close()
		return
	}

	if m.sessions != nil {
		id, err := m.sessions.Open(r.Context(), user, roomID)
		if err != nil {
			slog.Warn("open session", "room", roomID, "user", user, "error", err)
		} else {
			c.sessionID = id
		}
	}

	go c.writePump()
	m.broadcast(rm, controlFrame("join", roomID, user, m.snapshot(rm)))
	if full := m.markStarted(rm); full {
		m.broadcast(rm, controlFrame("start", roomID, "", m.snapshot(rm)))
	}

	m.readLoop(rm, c)
}

func (m *RoomManager) join(roomID string, c *roomClient) (*room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm := m.rooms[roomID]
	if rm == nil {
		rm = &room{id: roomID, clients: map[*roomClient]struct{}{}}
		m.rooms[roomID] = rm
	}
	if len(rm.clients) >= m.size {
		return nil, false
	}
	rm.clients[c] = struct{}{}
	return rm, true
}

func (m *RoomManager) snapshot(rm *room) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return rm.names()
}

// markStarted flips the room to started once all seats are taken; returns
// true only on the transition.
func (m *RoomManager) markStarted(rm *room) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rm.started || len(rm.clients) < m.size {
		return false
	}
	rm.started = true
	return true
}

func (m *RoomManager) readLoop(rm *room, c *roomClient) {
	defer m.leave(rm, c)
	c.setupRead()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !json.Valid(raw) {
			continue
		}
		// Relay verbatim to the other seats.
		m.relay(rm, c, raw)
	}
}

func (m *RoomManager) relay(rm *room, from *roomClient, raw []byte) {
	m.mu.Lock()
	var slow []*roomClient
	for c := range rm.clients {
		if c == from {
			continue
		}
		if !c.trySend(raw) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(rm.clients, c)
		close(c.send)
	}
	m.mu.Unlock()
}

func (m *RoomManager) broadcast(rm *room, frame []byte) {
	m.mu.Lock()
	var slow []*roomClient
	for c := range rm.clients {
		if !c.trySend(frame) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(rm.clients, c)
		close(c.send)
	}
	m.mu.Unlock()
}

func (m *RoomManager) leave(rm *room, c *roomClient) {
	m.mu.Lock()
	if _, ok := rm.clients[c]; ok {
		delete(rm.clients, c)
		close(c.send)
	}
	empty := len(rm.clients) == 0
	if empty {
		delete(m.rooms, rm.id)
	}
	remaining := rm.names()
	m.mu.Unlock()
	_ = c.conn.Close()

	if m.sessions != nil && c.sessionID != 0 {
		if err := m.sessions.Abandon(context.Background(), c.sessionID); err != nil {
			slog.Warn("abandon session", "session", c.sessionID, "error", err)
		}
	}
	if !empty {
		m.broadcast(rm, controlFrame("leave", rm.id, c.user, remaining))
	}
}

func controlFrame(typ, roomID, user string, players []string) []byte {
	b, _ := json.Marshal(map[string]any{
		"type": typ, "room": roomID, "user": user, "players": players,
	})
	return b
}
