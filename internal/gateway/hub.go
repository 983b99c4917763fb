package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/rangecoach/internal/domain"
	"github.com/soyeahso/rangecoach/internal/logging"
)

const (
	subscriberSendBuffer = 32
	writeWait            = 10 * time.Second
)

// eventFrame is the wire shape pushed to websocket subscribers.
type eventFrame struct {
	Type      string               `json:"type"`
	SessionID string               `json:"session_id"`
	Event     domain.ActivityEvent `json:"event"`
}

// Hub fans ingested events out to per-session websocket subscribers. A
// subscriber that cannot keep up is dropped rather than allowed to stall
// the broadcast.
type Hub struct {
	log *logging.Logger

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues data unless the subscriber is closed or its buffer is
// full. Send and close are mutually exclusive under mu, so a subscriber
// being dropped by one goroutine can never panic a concurrent broadcast
// with a send on its closed channel.
func (s *subscriber) trySend(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:  log.Sub("hub"),
		subs: map[string]map[*subscriber]struct{}{},
	}
}

// Subscribe registers a connection for a session's event feed and starts
// its write pump. The returned cancel function detaches and closes it.
func (h *Hub) Subscribe(sessionID string, conn *websocket.Conn) func() {
	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, subscriberSendBuffer),
	}

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = map[*subscriber]struct{}{}
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	go sub.writePump()

	return func() { h.drop(sessionID, sub) }
}

// Broadcast pushes events to every subscriber of the session.
func (h *Hub) Broadcast(sessionID string, events []domain.ActivityEvent) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs[sessionID]))
	for sub := range h.subs[sessionID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	for _, event := range events {
		data, err := json.Marshal(eventFrame{Type: "event", SessionID: sessionID, Event: event})
		if err != nil {
			h.log.Warn().Err(err).Msg("failed to encode event frame")
			continue
		}
		for _, sub := range subs {
			if !sub.trySend(data) {
				h.log.Debug().Str("session", sessionID).Msg("dropping websocket subscriber")
				h.drop(sessionID, sub)
			}
		}
	}
}

// SubscriberCount reports the live subscribers for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

func (h *Hub) drop(sessionID string, sub *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[sessionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sessionID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

func (s *subscriber) writePump() {
	defer s.conn.Close()
	for data := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

