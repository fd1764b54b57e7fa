// Package realtime delivers the message change feed over WebSocket.
package realtime

import (
	"sync"

	"github.com/gorilla/websocket"

	"chatcore/internal/metrics"
)

// Hub manages active WebSocket connections keyed by user id and fans events
// out to the users a change is visible to.
//
// Delivery is at-least-once: a user with several connections, or a broadcast
// raced with a reconnect, can see the same event twice. Every message event
// carries the message id so consumers can de-duplicate.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]struct{}
	rec   metrics.Recorder
}

func NewHub(rec metrics.Recorder) *Hub {
	return &Hub{
		conns: make(map[string]map[*websocket.Conn]struct{}),
		rec:   rec,
	}
}

// Register adds a connection for the given user.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][conn] = struct{}{}
}

// Unregister removes a connection for the given user.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conns, userID)
		}
	}
}

// BroadcastToUsers sends the payload to all active connections of the given
// user ids. Write failures close the connection; removal happens on the next
// Register/Unregister.
func (h *Hub) BroadcastToUsers(userIDs []string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, uid := range userIDs {
		conns, ok := h.conns[uid]
		if !ok {
			continue
		}
		for conn := range conns {
			if err := conn.WriteJSON(payload); err != nil {
				conn.Close()
				continue
			}
			delivered++
		}
	}
	h.rec.RecordBroadcast(delivered)
}
