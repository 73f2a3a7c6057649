// Package realtime pushes new messages to agents watching a conversation.
package realtime

import (
	"errors"
	"sync"

	"sms-support-server/internal/models"
)

// Event names sent to clients
const (
	EventJoined     = "joined"
	EventLeft       = "left"
	EventNewMessage = "new_message"
	EventError      = "error"
)

// ErrUnknownSession is returned when subscribing a session that was never registered
var ErrUnknownSession = errors.New("unknown session")

// Event is one frame pushed to a session
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Sink receives events for one session. Deliver must not block; it reports
// whether the event was accepted.
type Sink interface {
	Deliver(Event) bool
}

// Hub tracks which sessions watch which conversation. State lives for the
// lifetime of the process and is never persisted.
type Hub struct {
	mu            sync.RWMutex
	sessions      map[string]Sink
	subscribers   map[string]map[string]struct{} // conversation -> sessions
	subscriptions map[string]map[string]struct{} // session -> conversations
}

// NewHub creates an empty Hub
func NewHub() *Hub {
	return &Hub{
		sessions:      make(map[string]Sink),
		subscribers:   make(map[string]map[string]struct{}),
		subscriptions: make(map[string]map[string]struct{}),
	}
}

// Register makes a session known to the hub
func (h *Hub) Register(sessionID string, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sessionID] = sink
	if _, ok := h.subscriptions[sessionID]; !ok {
		h.subscriptions[sessionID] = make(map[string]struct{})
	}
}

// Subscribe adds the session to a conversation. Subscribing twice is a no-op.
func (h *Hub) Subscribe(sessionID, conversationID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[sessionID]; !ok {
		return ErrUnknownSession
	}

	members, ok := h.subscribers[conversationID]
	if !ok {
		members = make(map[string]struct{})
		h.subscribers[conversationID] = members
	}
	members[sessionID] = struct{}{}
	h.subscriptions[sessionID][conversationID] = struct{}{}
	return nil
}

// Unsubscribe removes the session from a conversation. Unknown pairs are ignored.
func (h *Hub) Unsubscribe(sessionID, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(sessionID, conversationID)
}

func (h *Hub) unsubscribeLocked(sessionID, conversationID string) {
	if members, ok := h.subscribers[conversationID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.subscribers, conversationID)
		}
	}
	if joined, ok := h.subscriptions[sessionID]; ok {
		delete(joined, conversationID)
	}
}

// Disconnect drops the session and every subscription it holds
func (h *Hub) Disconnect(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conversationID := range h.subscriptions[sessionID] {
		h.unsubscribeLocked(sessionID, conversationID)
	}
	delete(h.subscriptions, sessionID)
	delete(h.sessions, sessionID)
}

// Broadcast delivers ev to every session subscribed to the conversation and
// returns how many accepted it. Sessions with a full outbox miss the event.
func (h *Hub) Broadcast(conversationID string, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sessionID := range h.subscribers[conversationID] {
		if sink, ok := h.sessions[sessionID]; ok && sink.Deliver(ev) {
			delivered++
		}
	}
	return delivered
}

// Publish pushes a new_message event for msg to the conversation's subscribers
func (h *Hub) Publish(conversationID string, msg *models.Message) int {
	return h.Broadcast(conversationID, Event{Name: EventNewMessage, Data: msg})
}

// Subscribers returns how many sessions watch the conversation
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[conversationID])
}

// Sessions returns how many sessions are registered
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
