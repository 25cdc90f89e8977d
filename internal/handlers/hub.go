package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/partyroom/internal/game"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Message is a server push. Acks use their own shape, see Ack.
type Message struct {
	Type    string      `json:"type"`
	RoomID  int64       `json:"roomId,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Conn is one live websocket of a session. Handle is fresh per connection,
// so the engine can tell a stale disconnect from the current one.
type Conn struct {
	Handle    string
	SessionID string
	OutChan   chan interface{}
	Cancel    context.CancelFunc

	limiter *rate.Limiter
}

// NewConn sets up the outbound queue and an inbound limiter of 10 actions
// per second with a burst of 10.
func NewConn(handle, sessionID string, cancel context.CancelFunc) *Conn {
	return &Conn{
		Handle:    handle,
		SessionID: sessionID,
		OutChan:   make(chan interface{}, 64),
		Cancel:    cancel,
		limiter:   rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
	}
}

// Allow reports whether another inbound action fits the rate limit.
func (c *Conn) Allow() bool { return c.limiter.Allow() }

// Hub routes engine events to connections. It implements game.Transport and
// never blocks: a connection whose queue is full loses the message.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Conn
	rooms    map[int64]map[string]struct{}
	logger   *logrus.Logger
}

var _ game.Transport = (*Hub)(nil)

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		sessions: map[string]*Conn{},
		rooms:    map[int64]map[string]struct{}{},
		logger:   logger,
	}
}

// Register makes c the live connection of its session and returns the
// connection it replaced, if any.
func (h *Hub) Register(c *Conn) *Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.sessions[c.SessionID]
	h.sessions[c.SessionID] = c
	if old == c {
		return nil
	}
	return old
}

// Unregister drops c unless a newer connection already took its place.
func (h *Hub) Unregister(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[c.SessionID] != c {
		return false
	}
	delete(h.sessions, c.SessionID)
	return true
}

// Push queues msg for a session's current connection.
func (h *Hub) Push(sessionID string, msg interface{}) {
	h.mu.RLock()
	c := h.sessions[sessionID]
	h.mu.RUnlock()
	if c != nil {
		h.enqueue(c, msg)
	}
}

func (h *Hub) enqueue(c *Conn, msg interface{}) {
	select {
	case c.OutChan <- msg:
	default:
		h.logger.WithFields(logrus.Fields{"session": c.SessionID, "handle": c.Handle}).Warn("outbound queue full, dropping message")
	}
}

func (h *Hub) SendToSession(sessionID string, event game.EventType, payload interface{}) {
	h.Push(sessionID, Message{Type: string(event), Payload: payload})
}

func (h *Hub) BroadcastToRoom(roomID int64, event game.EventType, payload interface{}) {
	msg := Message{Type: string(event), RoomID: roomID, Payload: payload}
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[roomID]))
	for sid := range h.rooms[roomID] {
		if c := h.sessions[sid]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		h.enqueue(c, msg)
	}
}

func (h *Hub) JoinRoom(roomID int64, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = map[string]struct{}{}
		h.rooms[roomID] = members
	}
	members[sessionID] = struct{}{}
}

func (h *Hub) LeaveRoom(roomID int64, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[roomID]
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// RoomMembers returns how many sessions listen to a room.
func (h *Hub) RoomMembers(roomID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
