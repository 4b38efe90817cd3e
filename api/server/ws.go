package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/exoplanet-explorer/backend/shared/protocol"
)

const (
	writeTimeout = 10 * time.Second
	// maxMessageSize bounds inbound frames; nothing in the protocol is
	// larger than a chat message plus envelope overhead.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// CORS is enforced at the HTTP layer; the upgrade itself accepts any
	// origin the middleware let through.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Conn wraps a websocket connection with its negotiated wire format. Clients
// that request ?format=msgpack get binary frames; everyone else gets JSON
// text frames.
type Conn struct {
	ws     *websocket.Conn
	binary bool

	mu sync.Mutex
}

func newConn(ws *websocket.Conn, r *http.Request) *Conn {
	return &Conn{ws: ws, binary: r.URL.Query().Get("format") == "msgpack"}
}

// Send encodes and writes one envelope under the connection's write lock.
func (c *Conn) Send(env *protocol.Envelope) error {
	var (
		data []byte
		err  error
		kind int
	)
	if c.binary {
		data, err = env.Encode()
		kind = websocket.BinaryMessage
	} else {
		data, err = env.EncodeJSON()
		kind = websocket.TextMessage
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(kind, data)
}

// decode parses one inbound frame according to its frame type.
func decode(kind int, data []byte) (*protocol.Envelope, error) {
	if kind == websocket.BinaryMessage {
		return protocol.DecodeEnvelope(data)
	}
	return protocol.DecodeEnvelopeJSON(data)
}

// ChatClient is the per-connection chat bookkeeping surfaced by the stats
// stream.
type ChatClient struct {
	ClientID     string
	ConnectedAt  time.Time
	MessageCount int
}

// Hub tracks connections by named group and fans envelopes out to them.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Conn]struct{}
	chat   map[*Conn]*ChatClient
}

func NewHub() *Hub {
	return &Hub{
		groups: make(map[string]map[*Conn]struct{}),
		chat:   make(map[*Conn]*ChatClient),
	}
}

func (h *Hub) Subscribe(group string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[group] == nil {
		h.groups[group] = make(map[*Conn]struct{})
	}
	h.groups[group][conn] = struct{}{}
	wsConnections.WithLabelValues(group).Set(float64(len(h.groups[group])))
	slog.Info("ws: subscribed", "group", group, "total", len(h.groups[group]))
}

func (h *Hub) Unsubscribe(group string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(group, conn)
}

func (h *Hub) removeLocked(group string, conn *Conn) {
	if subs, ok := h.groups[group]; ok {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.groups, group)
		}
		wsConnections.WithLabelValues(group).Set(float64(len(subs)))
		slog.Info("ws: unsubscribed", "group", group, "remaining", len(subs))
	}
	delete(h.chat, conn)
}

// Count returns the live connection count for a group.
func (h *Hub) Count(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// GroupCounts snapshots every group's connection count.
func (h *Hub) GroupCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[string]int, len(h.groups))
	for group, subs := range h.groups {
		counts[group] = len(subs)
	}
	return counts
}

// Broadcast sends an envelope to every member of a group, dropping
// connections whose writes fail.
func (h *Hub) Broadcast(group string, env *protocol.Envelope) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.groups[group]))
	for conn := range h.groups[group] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	var dead []*Conn
	for _, conn := range conns {
		if err := conn.Send(env); err != nil {
			slog.Error("ws: broadcast send failed", "group", group, "error", err)
			dead = append(dead, conn)
		}
	}

	if len(dead) > 0 {
		h.mu.Lock()
		for _, conn := range dead {
			h.removeLocked(group, conn)
		}
		h.mu.Unlock()
	}
	wsMessages.WithLabelValues(group).Inc()
}

// BroadcastExcept is Broadcast minus one connection, used for join/leave
// notices the subject should not receive.
func (h *Hub) BroadcastExcept(group string, env *protocol.Envelope, except *Conn) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.groups[group]))
	for conn := range h.groups[group] {
		if conn != except {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(env); err != nil {
			slog.Error("ws: send failed", "group", group, "error", err)
		}
	}
}

// RegisterChat attaches chat bookkeeping to a connection.
func (h *Hub) RegisterChat(conn *Conn, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chat[conn] = &ChatClient{ClientID: clientID, ConnectedAt: time.Now()}
}

// BumpMessageCount increments the sender's counter and returns the new value.
func (h *Hub) BumpMessageCount(conn *Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if info, ok := h.chat[conn]; ok {
		info.MessageCount++
		return info.MessageCount
	}
	return 0
}

// ChatClients snapshots the connected chat users.
func (h *Hub) ChatClients() []protocol.ChatClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]protocol.ChatClientInfo, 0, len(h.chat))
	for _, info := range h.chat {
		clients = append(clients, protocol.ChatClientInfo{
			ClientID:     info.ClientID,
			ConnectedAt:  info.ConnectedAt.Unix(),
			MessageCount: info.MessageCount,
		})
	}
	return clients
}
