// Package websocket pushes schedule change events to connected clients.
// Each client subscribes to the groups its user belongs to.
package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Message is a change event as sent over the socket.
type Message struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	GroupID int64  `json:"group_id"`
	SlotID  int64  `json:"slot_id,omitempty"`
	ActorID int64  `json:"actor_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Hub maintains the set of active clients and routes messages by group.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Websocket client registered",
		zap.Int64("user_id", c.userID),
		zap.Int("groups", len(c.groups)))
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// BroadcastToGroup отправляет сообщение всем клиентам, подписанным на группу.
// Возвращает число клиентов, которым сообщение поставлено в буфер.
func (h *Hub) BroadcastToGroup(groupID int64, msg Message) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients {
		if !c.subscribed(groupID) {
			continue
		}
		select {
		case c.send <- data:
			sent++
		default:
			// Буфер клиента переполнен, пропускаем
			h.logger.Warn("Websocket client buffer full, dropping message",
				zap.Int64("user_id", c.userID),
				zap.String("type", msg.Type))
		}
	}
	return sent, nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
